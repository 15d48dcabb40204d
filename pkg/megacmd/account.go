package megacmd

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
)

var (
	dfLocationRe = regexp.MustCompile(`^(.+?):\s+(\d+)\s+in\s+(\d+)\s+file\(s\)\s+and\s+(\d+)\s+folder\(s\)`)
	dfSummaryRe  = regexp.MustCompile(`^USED STORAGE:\s+(\d+)\s+([\d.]+)%\s+of\s+(\d+)`)
	dfVersionsRe = regexp.MustCompile(`^Total size taken up by file versions:\s+(\d+)`)
)

// ParseDiskFree parses `df` output:
//
//	Cloud drive:          250770805753 in   17210 file(s) and    1352 folder(s)
//	USED STORAGE:         250770069025                  11.40% of 2199023255552
//	Total size taken up by file versions:    306416706
func ParseDiskFree(text string) (models.StorageOverview, error) {
	var out models.StorageOverview
	summary := false
	for _, raw := range splitLines(text) {
		line := strings.TrimSpace(raw)
		if m := dfSummaryRe.FindStringSubmatch(line); m != nil {
			out.UsedBytes, _ = strconv.ParseInt(m[1], 10, 64)
			out.UsedPercent, _ = strconv.ParseFloat(m[2], 64)
			out.TotalBytes, _ = strconv.ParseInt(m[3], 10, 64)
			summary = true
			continue
		}
		if m := dfVersionsRe.FindStringSubmatch(line); m != nil {
			out.VersionBytes, _ = strconv.ParseInt(m[1], 10, 64)
			continue
		}
		if m := dfLocationRe.FindStringSubmatch(line); m != nil {
			loc := models.StorageLocation{Name: m[1]}
			loc.Bytes, _ = strconv.ParseInt(m[2], 10, 64)
			loc.Files, _ = strconv.Atoi(m[3])
			loc.Folders, _ = strconv.Atoi(m[4])
			out.Locations = append(out.Locations, loc)
		}
	}
	if !summary {
		return out, &models.OpError{Kind: models.ErrParse, Op: "df", Diagnostic: text}
	}
	return out, nil
}

// ParseWhoAmI extracts the account e-mail from `whoami` output
func ParseWhoAmI(text string) (string, bool) {
	for _, field := range strings.Fields(text) {
		if strings.Contains(field, "@") {
			return strings.Trim(field, "<>\"'"), true
		}
	}
	return "", false
}

// ParseMediaInfo parses `mediainfo` output. Rows end with WIDTH HEIGHT FPS
// PLAYTIME; everything before them is the file name.
func ParseMediaInfo(path, text string) (models.MediaInfo, error) {
	for _, raw := range splitLines(text) {
		fields := strings.Fields(raw)
		if len(fields) < 5 || strings.EqualFold(fields[0], "FILE") {
			continue
		}
		n := len(fields)
		info := models.MediaInfo{Path: path, Playtime: fields[n-1]}
		info.Width, _ = strconv.Atoi(fields[n-4])
		info.Height, _ = strconv.Atoi(fields[n-3])
		info.FPS, _ = strconv.ParseFloat(fields[n-2], 64)
		return info, nil
	}
	return models.MediaInfo{}, &models.OpError{
		Kind:       models.ErrParse,
		Op:         "mediainfo",
		Paths:      []string{path},
		Diagnostic: text,
	}
}
