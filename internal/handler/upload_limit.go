package handler

import "strconv"

func formatUploadLimit(bytes int64) string {
	const kb = 1024
	const mb = 1024 * kb
	switch {
	case bytes <= 0:
		return "0MB"
	case bytes < mb:
		return strconv.FormatInt((bytes+kb-1)/kb, 10) + "KB"
	default:
		return strconv.FormatInt(bytes/mb, 10) + "MB"
	}
}
