package cache

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cometwk/standards/pkg/metrics"
	"github.com/pkg/errors"
)

type entry struct {
	path    string
	size    int64
	modTime time.Time
}

type CleanupResult struct {
	Expired    int   `json:"expired"`
	Evicted    int   `json:"evicted"`
	FreedBytes int64 `json:"freedBytes"`
	FileCount  int   `json:"fileCount"`
	TotalBytes int64 `json:"totalBytes"`
}

type Stats struct {
	FileCount   int     `json:"fileCount"`
	TotalSizeMB float64 `json:"totalSizeMB"`
	MaxSizeMB   float64 `json:"maxSizeMB"`
	TTLHours    float64 `json:"ttlHours"`
	Path        string  `json:"path"`
}

type Removed struct {
	FileCount   int     `json:"fileCount"`
	TotalSizeMB float64 `json:"totalSizeMB"`
}

// entries lists cache files; caller holds c.mu.
func (c *LocalCache) entries() ([]entry, error) {
	des, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read cache dir")
	}
	out := make([]entry, 0, len(des))
	for _, de := range des {
		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// 并发删除
			continue
		}
		out = append(out, entry{
			path:    filepath.Join(c.dir, de.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}
	return out, nil
}

// Cleanup removes expired entries, then evicts the oldest remaining entries
// until the total size is within the cap. The two phases are disjoint.
// Entries with open handles are skipped by both phases.
func (c *LocalCache) Cleanup() (*CleanupResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	all, err := c.entries()
	if err != nil {
		return nil, err
	}
	res := &CleanupResult{}

	// phase 1: TTL
	live := all[:0]
	for _, e := range all {
		if c.age(e.modTime) >= c.ttl && !c.inUse(e.path) {
			if err := os.Remove(e.path); err == nil || os.IsNotExist(err) {
				res.Expired++
				res.FreedBytes += e.size
				metrics.CacheEvictions.WithLabelValues("expired").Inc()
				continue
			}
		}
		live = append(live, e)
	}

	// phase 2: size cap, oldest first
	var total int64
	for _, e := range live {
		total += e.size
	}
	if total > c.maxBytes {
		sort.SliceStable(live, func(i, j int) bool {
			return live[i].modTime.Before(live[j].modTime)
		})
		kept := live[:0]
		for _, e := range live {
			if total > c.maxBytes && !c.inUse(e.path) {
				if err := os.Remove(e.path); err == nil || os.IsNotExist(err) {
					total -= e.size
					res.Evicted++
					res.FreedBytes += e.size
					metrics.CacheEvictions.WithLabelValues("size").Inc()
					continue
				}
			}
			kept = append(kept, e)
		}
		live = kept
		if total > c.maxBytes {
			xlog.Warnf("缓存仍超出上限: %d > %d (存在正在读取的文件)", total, c.maxBytes)
		}
	}

	res.FileCount = len(live)
	res.TotalBytes = total
	metrics.CacheBytes.Set(float64(total))
	if res.Expired > 0 || res.Evicted > 0 {
		xlog.Infof("缓存清理: 过期 %d, 淘汰 %d, 释放 %d bytes", res.Expired, res.Evicted, res.FreedBytes)
	}
	return res, nil
}

// Stats reports aggregate size and count of cached files.
func (c *LocalCache) Stats() (*Stats, error) {
	c.mu.Lock()
	all, err := c.entries()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var total int64
	for _, e := range all {
		total += e.size
	}
	return &Stats{
		FileCount:   len(all),
		TotalSizeMB: toMB(total),
		MaxSizeMB:   toMB(c.maxBytes),
		TTLHours:    c.ttl.Hours(),
		Path:        c.dir,
	}, nil
}

// Clear deletes every cached file not currently open and purges the
// metadata cache.
func (c *LocalCache) Clear() (*Removed, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	all, err := c.entries()
	if err != nil {
		return nil, err
	}
	var (
		count int
		total int64
	)
	for _, e := range all {
		if c.inUse(e.path) {
			continue
		}
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "remove %s", e.path)
		}
		count++
		total += e.size
		metrics.CacheEvictions.WithLabelValues("clear").Inc()
	}
	c.meta.Purge()
	xlog.Infof("已清空缓存: %d 个文件, %d bytes", count, total)
	return &Removed{FileCount: count, TotalSizeMB: toMB(total)}, nil
}

func toMB(n int64) float64 {
	return math.Round(float64(n)/1024/1024*100) / 100
}
