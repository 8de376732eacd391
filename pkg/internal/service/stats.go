package service

import (
	"context"
	"time"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/quota"
	"github.com/yeisme/cloudvault/pkg/internal/types"
)

const (
	hoursPerDay      = 24
	defaultTrendDays = 14
	maxTrendDays     = 60
	oneMB            = 1 << 20
	tenMB            = 10 << 20
	hundredMB        = 100 << 20
)

// StatsService 基于 files 表的用量统计，仅统计调用方拥有的资源.
type StatsService struct {
	d Deps
}

func NewStatsService(c context.Context) *StatsService { return NewStatsServiceWith(DepsFromContext(c)) }

func NewStatsServiceWith(d Deps) *StatsService { return &StatsService{d: d} }

// Summary 资源总体统计.
func (s *StatsService) Summary(ctx context.Context, userID string) (types.StatsSummary, error) {
	db := s.d.DB.WithContext(ctx)

	var agg struct {
		Cnt int64 `gorm:"column:cnt"`
		Sum int64 `gorm:"column:sum"`
	}

	if err := db.Model(&model.File{}).
		Select("COUNT(*) AS cnt, COALESCE(SUM(size),0) AS sum").
		Where("owner_id = ?", userID).
		Scan(&agg).Error; err != nil {
		return types.StatsSummary{}, errs.FromDB(err, "file")
	}

	out := types.StatsSummary{Files: int(agg.Cnt), TotalSize: agg.Sum}

	counts := []struct {
		dst   *int
		model any
		where string
	}{
		{&out.Folders, &model.Folder{}, "owner_id = ?"},
		{&out.Links, &model.ShareLink{}, "owner_id = ?"},
		{&out.SharedWithMe, &model.FolderShare{}, "user_id = ?"},
	}

	for _, c := range counts {
		var n int64
		if err := db.Model(c.model).Where(c.where, userID).Count(&n).Error; err != nil {
			return types.StatsSummary{}, errs.FromDB(err, "stats")
		}

		*c.dst = int(n)
	}

	var fileShared int64
	if err := db.Model(&model.FileShare{}).Where("user_id = ?", userID).Count(&fileShared).Error; err != nil {
		return types.StatsSummary{}, errs.FromDB(err, "stats")
	}

	out.SharedWithMe += int(fileShared)

	// 授予他人的共享：按资源所有者统计
	var outFolder, outFile int64
	if err := db.Model(&model.FolderShare{}).
		Where("folder_id IN (?)", db.Model(&model.Folder{}).Select("id").Where("owner_id = ?", userID)).
		Count(&outFolder).Error; err != nil {
		return types.StatsSummary{}, errs.FromDB(err, "stats")
	}

	if err := db.Model(&model.FileShare{}).
		Where("file_id IN (?)", db.Model(&model.File{}).Select("id").Where("owner_id = ?", userID)).
		Count(&outFile).Error; err != nil {
		return types.StatsSummary{}, errs.FromDB(err, "stats")
	}

	out.SharedOut = int(outFolder + outFile)

	used, limit, err := quota.Usage(ctx, s.d.DB, userID)
	if err != nil {
		return types.StatsSummary{}, err
	}

	out.Used, out.Quota = used, limit

	return out, nil
}

// FilesByType 按 mime_type 一级类型（如 image、video、application）聚合.
func (s *StatsService) FilesByType(ctx context.Context, userID string) ([]types.MimeUsage, error) {
	rows := []struct {
		CT  string
		Cnt int64
		Sum int64
	}{}
	// SQLite/MySQL/Postgres 兼容：取 '/' 之前的部分，为空归类 unknown
	err := s.d.DB.WithContext(ctx).Model(&model.File{}).
		Select("CASE WHEN mime_type LIKE '%/%' THEN "+
			"SUBSTR(mime_type,1,INSTR(mime_type,'/')-1) "+
			"ELSE COALESCE(NULLIF(mime_type,''),'unknown') END as ct, "+
			"COUNT(*) as cnt, COALESCE(SUM(size),0) as sum").
		Where("owner_id = ?", userID).
		Group("ct").
		Scan(&rows).Error
	if err != nil {
		return nil, errs.FromDB(err, "stats")
	}

	out := make([]types.MimeUsage, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.MimeUsage{Group: r.CT, Files: int(r.Cnt), Bytes: r.Sum})
	}

	return out, nil
}

// FilesBySizeBuckets 按大小分桶.
func (s *StatsService) FilesBySizeBuckets(ctx context.Context, userID string) ([]types.SizeBucket, error) {
	db := s.d.DB.WithContext(ctx)

	buckets := []types.SizeBucket{
		{Label: "0-1MB", From: 0, To: oneMB},
		{Label: "1-10MB", From: oneMB, To: tenMB},
		{Label: "10-100MB", From: tenMB, To: hundredMB},
		{Label: ">=100MB", From: hundredMB, To: -1},
	}

	for i := range buckets {
		q := db.Model(&model.File{}).Where("owner_id = ? AND size >= ?", userID, buckets[i].From)
		if buckets[i].To > 0 {
			q = q.Where("size < ?", buckets[i].To)
		}

		var agg struct {
			Cnt int64
			Sum int64
		}

		if err := q.Select("COUNT(*) as cnt, COALESCE(SUM(size),0) as sum").Scan(&agg).Error; err != nil {
			return nil, errs.FromDB(err, "stats")
		}

		buckets[i].Files = int(agg.Cnt)
		buckets[i].Bytes = agg.Sum
	}

	return buckets, nil
}

// FilesTrend 最近 days 天按创建日期统计，缺失的日期补零.
func (s *StatsService) FilesTrend(ctx context.Context, userID string, days int) ([]types.DailyUploads, error) {
	if days <= 0 || days > maxTrendDays {
		days = defaultTrendDays
	}

	start := s.d.now().AddDate(0, 0, -days+1).Truncate(hoursPerDay * time.Hour)

	var files []model.File
	if err := s.d.DB.WithContext(ctx).Select("size", "created_at").
		Where("owner_id = ? AND created_at >= ?", userID, start).
		Find(&files).Error; err != nil {
		return nil, errs.FromDB(err, "stats")
	}

	// DATE() 在各方言下格式不一致，按天在内存中聚合
	byDay := make(map[string]*types.DailyUploads, days)
	out := make([]types.DailyUploads, days)

	for i := range days {
		out[i].Day = start.AddDate(0, 0, i).Format(time.DateOnly)
		byDay[out[i].Day] = &out[i]
	}

	for _, f := range files {
		if p, ok := byDay[f.CreatedAt.UTC().Format(time.DateOnly)]; ok {
			p.Files++
			p.Bytes += f.Size
		}
	}

	return out, nil
}

// Dashboard 汇总全部统计.
func (s *StatsService) Dashboard(ctx context.Context, userID string, days int) (*types.StatsDashboard, error) {
	summary, err := s.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}

	buckets, err := s.FilesBySizeBuckets(ctx, userID)
	if err != nil {
		return nil, err
	}

	byType, err := s.FilesByType(ctx, userID)
	if err != nil {
		return nil, err
	}

	trend, err := s.FilesTrend(ctx, userID, days)
	if err != nil {
		return nil, err
	}

	return &types.StatsDashboard{Summary: summary, SizeBuckets: buckets, Types: byType, Trend: trend}, nil
}
