package service

import (
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/types"
	"github.com/yeisme/cloudvault/pkg/queue"
)

func toUserSummary(u *model.User) types.UserSummary {
	if u == nil {
		return types.UserSummary{}
	}

	return types.UserSummary{ID: u.ID, Email: u.Email, Name: u.Name}
}

func toUser(u *model.User) *types.User {
	out := &types.User{
		UserSummary:  toUserSummary(u),
		StorageQuota: u.StorageQuota,
		StorageUsed:  u.StorageUsed,
		CreatedAt:    u.CreatedAt,
	}
	if u.RootFolderID != nil {
		out.RootFolderID = *u.RootFolderID
	}

	return out
}

func toFolder(f *model.Folder) types.Folder {
	return types.Folder{
		ID:          f.ID,
		Name:        f.Name,
		OwnerID:     f.OwnerID,
		ParentID:    f.ParentID,
		IsPublic:    f.IsPublic,
		Color:       f.Color,
		Description: f.Description,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func toFolders(in []model.Folder) []types.Folder {
	out := make([]types.Folder, 0, len(in))
	for i := range in {
		out = append(out, toFolder(&in[i]))
	}

	return out
}

func toFile(f *model.File) types.File {
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}

	return types.File{
		ID:           f.ID,
		Name:         f.Name,
		OriginalName: f.OriginalName,
		MimeType:     f.MimeType,
		Size:         f.Size,
		FolderID:     f.FolderID,
		OwnerID:      f.OwnerID,
		IsPublic:     f.IsPublic,
		PublicSlug:   f.PublicSlug,
		Description:  f.Description,
		Tags:         tags,
		Version:      f.Version,
		ContentHash:  f.ContentHash,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

func toFiles(in []model.File) []types.File {
	out := make([]types.File, 0, len(in))
	for i := range in {
		out = append(out, toFile(&in[i]))
	}

	return out
}

func folderShareView(s *model.FolderShare, grantee *model.User) types.Share {
	return types.Share{
		ID:                 s.ID,
		ResourceType:       types.ResourceFolder,
		ResourceID:         s.FolderID,
		Role:               string(s.Role),
		OrganizationDomain: s.OrganizationDomain,
		ExpiresAt:          s.ExpiresAt,
		User:               toUserSummary(grantee),
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func fileShareView(s *model.FileShare, grantee *model.User) types.Share {
	return types.Share{
		ID:                 s.ID,
		ResourceType:       types.ResourceFile,
		ResourceID:         s.FileID,
		Role:               string(s.Role),
		OrganizationDomain: s.OrganizationDomain,
		ExpiresAt:          s.ExpiresAt,
		User:               toUserSummary(grantee),
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func toLink(l *model.ShareLink) types.Link {
	return types.Link{
		ID:            l.ID,
		FileID:        l.FileID,
		OwnerID:       l.OwnerID,
		HasPassword:   l.HasPassword(),
		AllowDownload: l.AllowDownload,
		ExpiresAt:     l.ExpiresAt,
		AccessCount:   l.AccessCount,
		CreatedAt:     l.CreatedAt,
	}
}

func fileRef(f *model.File) queue.FileRef {
	return queue.FileRef{
		FileID:     f.ID,
		Name:       f.Name,
		FolderID:   f.FolderID,
		OwnerID:    f.OwnerID,
		StorageKey: f.StorageKey,
		Bucket:     f.BucketName,
		Size:       f.Size,
		MimeType:   f.MimeType,
	}
}
