package images

import (
	"imghost/internal/gallery"
	"imghost/pkg/api"
	"imghost/pkg/keys"
)

func toImage(svc *gallery.Service, f gallery.File) api.Image {
	url, cdn := svc.URLs(f.Key)
	return api.Image{
		Key:           f.Key,
		Name:          f.FileName,
		Folder:        f.FolderPath,
		URL:           url,
		CDNURL:        cdn,
		Size:          f.Size,
		SizeFormatted: api.FormatSize(f.Size),
		ContentType:   f.ContentType,
		Uploaded:      f.LastModified,
		ETag:          f.ETag,
	}
}

func toFolder(root string, n gallery.FolderNode) api.Folder {
	return api.Folder{
		Name:          n.Name,
		Path:          n.Path,
		FullPath:      keys.Prefix(root, n.Path),
		ObjectCount:   n.ObjectCount,
		Size:          n.AggregatedSize,
		SizeFormatted: api.FormatSize(n.AggregatedSize),
	}
}

func toFolders(root string, nodes []gallery.FolderNode) []api.Folder {
	out := make([]api.Folder, len(nodes))
	for i, n := range nodes {
		out[i] = toFolder(root, n)
	}
	return out
}

func bucket(b gallery.Bucket) api.StatsBucket {
	return api.StatsBucket{Count: b.Count, Size: b.Size, SizeFormatted: api.FormatSize(b.Size)}
}

// toStats renders a snapshot: days newest first, extensions and folders by
// name.
func toStats(s gallery.Snapshot) api.StatsResponse {
	res := api.StatsResponse{
		TotalImages:        s.TotalCount,
		TotalSize:          s.TotalSize,
		TotalSizeFormatted: api.FormatSize(s.TotalSize),
		DailyStats:         []api.DayStat{},
		ExtensionStats:     []api.ExtensionStat{},
		FolderStats:        []api.FolderStat{},
	}
	for _, d := range s.Days() {
		res.DailyStats = append(res.DailyStats, api.DayStat{Date: d.Name, StatsBucket: bucket(d.Bucket)})
	}
	for _, e := range s.Extensions() {
		res.ExtensionStats = append(res.ExtensionStats, api.ExtensionStat{Extension: e.Name, StatsBucket: bucket(e.Bucket)})
	}
	for _, f := range s.Folders() {
		res.FolderStats = append(res.FolderStats, api.FolderStat{Folder: f.Name, StatsBucket: bucket(f.Bucket)})
	}
	return res
}

func toDeleteResponse(res gallery.DeleteResult) api.DeleteFolderResponse {
	out := api.DeleteFolderResponse{
		Success:      len(res.Failures) == 0,
		DeletedCount: res.DeletedCount,
		Failures:     []api.DeleteFailure{},
		Message:      "Folder deleted successfully",
	}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, api.DeleteFailure{Key: f.Key, Error: f.Err.Error()})
	}
	if !out.Success {
		out.Message = "Folder partially deleted"
	}
	return out
}
