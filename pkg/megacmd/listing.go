package megacmd

import (
	"regexp"
	"strings"
	"time"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
)

// ListingParse is the result of parsing one listing output
type ListingParse struct {
	Nodes []models.RemoteNode
	// Skipped counts non-blank lines that were neither a header nor an entry
	Skipped      int
	SkippedLines []string
}

var (
	// FLAGS VERS SIZE DATE [HANDLE] NAME, as printed by `ls -l --show-handles`
	longRe = regexp.MustCompile(`^([a-zA-Z-]{4})\s+(\d+|-)\s+(\S+)\s+` +
		`(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}|\d{2}[A-Za-z]{3}\d{4}\s+\d{2}:\d{2}:\d{2})\s+` +
		`(?:(H:\S+)\s+)?(.+)$`)

	// NAME TYPE SIZE DATE [TIME]
	columnarRe = regexp.MustCompile(`^(.+)\s+(FILE|DIR|DIRECTORY|FOLDER)\s+(\S+)\s+(\S+(?:\s+\S+)?)$`)

	headerRe = regexp.MustCompile(`^(?i:FLAGS\s+VERS|NAME\s+TYPE\s+SIZE)`)
)

var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02Jan2006 15:04:05",
	"02Jan2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02.01.2006 15:04",
	"Jan 2 2006 15:04",
}

// ParseTime accepts the timestamp layouts the tool is known to print.
// Timestamps are interpreted as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseListing turns listing output for the directory parent into nodes.
// Lines that cannot be understood are skipped and counted. An output that
// has content but yields no entries at all is a ParseError carrying the text.
func ParseListing(parent, text string) (ListingParse, error) {
	parent = models.CleanPath(parent)
	var res ListingParse
	res.Nodes = []models.RemoteNode{}

	for _, raw := range splitLines(text) {
		line := strings.TrimSpace(raw)
		if line == "" || headerRe.MatchString(line) {
			continue
		}
		node, ok := parseLongLine(parent, line)
		if !ok {
			node, ok = parseColumnarLine(parent, line)
		}
		if !ok {
			res.Skipped++
			res.SkippedLines = append(res.SkippedLines, raw)
			continue
		}
		res.Nodes = append(res.Nodes, node)
	}

	if len(res.Nodes) == 0 && res.Skipped > 0 {
		return res, &models.OpError{
			Kind:       models.ErrParse,
			Op:         "ls",
			Paths:      []string{parent},
			Diagnostic: text,
		}
	}
	return res, nil
}

func parseLongLine(parent, line string) (models.RemoteNode, bool) {
	m := longRe.FindStringSubmatch(line)
	if m == nil {
		return models.RemoteNode{}, false
	}
	flags, sizeTok, stamp, handle, name := m[1], m[3], m[4], m[5], strings.TrimSpace(m[6])

	size, err := ParseSize(sizeTok)
	if err != nil {
		return models.RemoteNode{}, false
	}
	kind := models.KindFile
	if flags[0] == 'd' {
		kind = models.KindDirectory
	}
	modified, _ := ParseTime(stamp)
	return newNode(parent, name, kind, size, modified, handle), true
}

func parseColumnarLine(parent, line string) (models.RemoteNode, bool) {
	m := columnarRe.FindStringSubmatch(line)
	if m == nil {
		return models.RemoteNode{}, false
	}
	name, typ, sizeTok, stamp := strings.TrimSpace(m[1]), strings.ToUpper(m[2]), m[3], m[4]

	size, err := ParseSize(sizeTok)
	if err != nil {
		return models.RemoteNode{}, false
	}
	kind := models.KindFile
	if typ != "FILE" {
		kind = models.KindDirectory
	}
	modified, _ := ParseTime(stamp)
	return newNode(parent, name, kind, size, modified, ""), true
}

func newNode(parent, name string, kind models.NodeKind, size int64, modified time.Time, handle string) models.RemoteNode {
	return models.RemoteNode{
		Path:       models.JoinPath(parent, name),
		Name:       name,
		Kind:       kind,
		Size:       size,
		ModifiedAt: modified,
		Handle:     handle,
	}
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}
