package types

// StatsSummary 调用方拥有的资源概览；SharedOut 为授予他人的共享条数.
type StatsSummary struct {
	Files        int   `json:"files"`
	Folders      int   `json:"folders"`
	SharedOut    int   `json:"shared_out"`
	SharedWithMe int   `json:"shared_with_me"`
	Links        int   `json:"links"`
	TotalSize    int64 `json:"total_size"`
	Used         int64 `json:"used"`
	Quota        int64 `json:"quota"`
}

// MimeUsage mime 一级类型（image、video ...）下的文件数与字节数.
type MimeUsage struct {
	Group string `json:"group"`
	Files int    `json:"files"`
	Bytes int64  `json:"bytes"`
}

// SizeBucket 区间 [From, To)，To 为 -1 表示无上界.
type SizeBucket struct {
	Label string `json:"label"`
	From  int64  `json:"from"`
	To    int64  `json:"to"`
	Files int    `json:"files"`
	Bytes int64  `json:"bytes"`
}

type DailyUploads struct {
	Day   string `json:"day"` // YYYY-MM-DD, UTC
	Files int    `json:"files"`
	Bytes int64  `json:"bytes"`
}

type StatsDashboard struct {
	Summary     StatsSummary   `json:"summary"`
	SizeBuckets []SizeBucket   `json:"size_buckets"`
	Types       []MimeUsage    `json:"types"`
	Trend       []DailyUploads `json:"trend"`
}
