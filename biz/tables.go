package biz

import (
	"time"
)

const (
	StandardActive = "ACTIVE"

	SyncSingleFile  = "SINGLE_FILE"
	SyncFull        = "FULL"
	SyncIncremental = "INCREMENTAL"

	StatusCompleted = "COMPLETED"
	StatusPartial   = "PARTIAL"
	StatusFailed    = "FAILED"
)

// Standard 标准文档, code 全局唯一 (如 S500)
type Standard struct {
	ID              string    `xorm:"varchar(64) pk 'id'"                        json:"id"               mapstructure:"id"`
	Code            string    `xorm:"varchar(16) notnull unique 'code'"          json:"code"             mapstructure:"code"`
	Title           string    `xorm:"varchar(512) notnull 'title'"               json:"title"            mapstructure:"title"`
	Edition         string    `xorm:"varchar(64) 'edition'"                      json:"edition"          mapstructure:"edition"`
	Publisher       string    `xorm:"varchar(128) 'publisher'"                   json:"publisher"        mapstructure:"publisher"`
	Version         string    `xorm:"varchar(32) 'version'"                      json:"version"          mapstructure:"version"`
	PublicationYear string    `xorm:"varchar(8) 'publicationYear'"               json:"publicationYear"  mapstructure:"publicationYear"`
	DriveFileID     string    `xorm:"varchar(128) index 'driveFileId'"           json:"driveFileId"      mapstructure:"driveFileId"`
	DriveFileName   string    `xorm:"varchar(512) 'driveFileName'"               json:"driveFileName"    mapstructure:"driveFileName"`
	FullText        string    `xorm:"text 'fullText'"                            json:"fullText"         mapstructure:"fullText"`
	Status          string    `xorm:"varchar(16) notnull 'status'"               json:"status"           mapstructure:"status"`
	LastSyncedAt    time.Time `xorm:"'lastSyncedAt'"                             json:"lastSyncedAt"     mapstructure:"lastSyncedAt"`
	CreatedAt       time.Time `xorm:"notnull 'createdAt'"                        json:"createdAt"        mapstructure:"createdAt"`
	UpdatedAt       time.Time `xorm:"notnull 'updatedAt'"                        json:"updatedAt"        mapstructure:"updatedAt"`
}

func (Standard) TableName() string { return "Standard" }

// StandardSection 章节, (standardId, sectionNumber) 唯一
type StandardSection struct {
	ID              string    `xorm:"varchar(64) pk 'id'"                                 json:"id"              mapstructure:"id"`
	StandardID      string    `xorm:"varchar(64) notnull unique(uq_section) 'standardId'" json:"standardId"      mapstructure:"standardId"`
	SectionNumber   string    `xorm:"varchar(64) notnull unique(uq_section) 'sectionNumber'" json:"sectionNumber" mapstructure:"sectionNumber"`
	Title           string    `xorm:"varchar(512) 'title'"                                json:"title"           mapstructure:"title"`
	Content         string    `xorm:"text 'content'"                                      json:"content"         mapstructure:"content"`
	Level           int       `xorm:"int 'level'"                                         json:"level"           mapstructure:"level"`
	Page            int       `xorm:"int 'page'"                                          json:"page"            mapstructure:"page"`
	ParentSectionID *string   `xorm:"varchar(64) 'parentSectionId'"                       json:"parentSectionId" mapstructure:"parentSectionId"`
	CreatedAt       time.Time `xorm:"notnull 'createdAt'"                                 json:"createdAt"       mapstructure:"createdAt"`
	UpdatedAt       time.Time `xorm:"notnull 'updatedAt'"                                 json:"updatedAt"       mapstructure:"updatedAt"`
}

func (StandardSection) TableName() string { return "StandardSection" }

// StandardClause 条款, (standardId, clauseNumber) 唯一; sectionId 为空表示 general
type StandardClause struct {
	ID           string    `xorm:"varchar(64) pk 'id'"                                json:"id"           mapstructure:"id"`
	StandardID   string    `xorm:"varchar(64) notnull unique(uq_clause) 'standardId'" json:"standardId"   mapstructure:"standardId"`
	ClauseNumber string    `xorm:"varchar(64) notnull unique(uq_clause) 'clauseNumber'" json:"clauseNumber" mapstructure:"clauseNumber"`
	SectionID    *string   `xorm:"varchar(64) 'sectionId'"                            json:"sectionId"    mapstructure:"sectionId"`
	Title        string    `xorm:"varchar(512) 'title'"                               json:"title"        mapstructure:"title"`
	Content      string    `xorm:"text 'content'"                                     json:"content"      mapstructure:"content"`
	Category     string    `xorm:"varchar(64) 'category'"                             json:"category"     mapstructure:"category"`
	Importance   string    `xorm:"varchar(32) 'importance'"                           json:"importance"   mapstructure:"importance"`
	Page         int       `xorm:"int 'page'"                                         json:"page"         mapstructure:"page"`
	CreatedAt    time.Time `xorm:"notnull 'createdAt'"                                json:"createdAt"    mapstructure:"createdAt"`
	UpdatedAt    time.Time `xorm:"notnull 'updatedAt'"                                json:"updatedAt"    mapstructure:"updatedAt"`
}

func (StandardClause) TableName() string { return "StandardClause" }

// SyncHistory 同步运行记录, 只追加, 写入后不再修改
type SyncHistory struct {
	ID               string    `xorm:"varchar(64) pk 'id'"             json:"id"               mapstructure:"id"`
	SyncType         string    `xorm:"varchar(16) notnull index 'syncType'" json:"syncType"     mapstructure:"syncType"`
	Status           string    `xorm:"varchar(16) notnull index 'status'"   json:"status"       mapstructure:"status"`
	DriveFileID      string    `xorm:"varchar(128) 'driveFileId'"      json:"driveFileId"      mapstructure:"driveFileId"`
	DriveFileName    string    `xorm:"varchar(512) 'driveFileName'"    json:"driveFileName"    mapstructure:"driveFileName"`
	StandardID       string    `xorm:"varchar(64) 'standardId'"        json:"standardId"       mapstructure:"standardId"`
	StandardsCreated int       `xorm:"int 'standardsCreated'"          json:"standardsCreated" mapstructure:"standardsCreated"`
	StandardsUpdated int       `xorm:"int 'standardsUpdated'"          json:"standardsUpdated" mapstructure:"standardsUpdated"`
	SectionsCreated  int       `xorm:"int 'sectionsCreated'"           json:"sectionsCreated"  mapstructure:"sectionsCreated"`
	SectionsUpdated  int       `xorm:"int 'sectionsUpdated'"           json:"sectionsUpdated"  mapstructure:"sectionsUpdated"`
	ClausesCreated   int       `xorm:"int 'clausesCreated'"            json:"clausesCreated"   mapstructure:"clausesCreated"`
	ClausesUpdated   int       `xorm:"int 'clausesUpdated'"            json:"clausesUpdated"   mapstructure:"clausesUpdated"`
	Errors           int       `xorm:"int 'errors'"                    json:"errors"           mapstructure:"errors"`
	ErrorLog         string    `xorm:"text 'errorLog'"                 json:"errorLog"         mapstructure:"errorLog"`
	Duration         int       `xorm:"int 'duration'"                  json:"duration"         mapstructure:"duration"`
	StartedAt        time.Time `xorm:"notnull index 'startedAt'"       json:"startedAt"        mapstructure:"startedAt"`
	CompletedAt      time.Time `xorm:"notnull 'completedAt'"           json:"completedAt"      mapstructure:"completedAt"`
}

func (SyncHistory) TableName() string { return "SyncHistory" }

// Tables 按外键依赖顺序
func Tables() []any {
	return []any{new(Standard), new(StandardSection), new(StandardClause), new(SyncHistory)}
}
