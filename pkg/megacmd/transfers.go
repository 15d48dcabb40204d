package megacmd

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
)

// TransfersParse is the result of parsing transfer-status output
type TransfersParse struct {
	Records      []models.TransferRecord
	Skipped      int
	SkippedLines []string
}

var (
	// "45.12% of 100.00 MB"
	percentOfRe = regexp.MustCompile(`^([0-9]+(?:[.,][0-9]+)?)\s*%\s+of\s+(.+)$`)
	// "1024/4096"
	ratioRe = regexp.MustCompile(`^(\S+)\s*/\s*(\S+)$`)
	// "100.00%"
	percentRe = regexp.MustCompile(`^([0-9]+(?:[.,][0-9]+)?)\s*%$`)

	// TYPE TAG SOURCE DEST PROGRESS... STATE, whitespace separated
	transferWSRe = regexp.MustCompile(`^(\S+)\s+(\d+)\s+(\S+)\s+(\S+)\s+(.+?)\s+([A-Za-z]+)$`)
)

var directionTokens = map[string]models.Direction{
	"⇓": models.DirectionDown, "↓": models.DirectionDown, "D": models.DirectionDown, "DOWN": models.DirectionDown, "DOWNLOAD": models.DirectionDown,
	"⇑": models.DirectionUp, "↑": models.DirectionUp, "U": models.DirectionUp, "UP": models.DirectionUp, "UPLOAD": models.DirectionUp,
}

var stateTokens = map[string]models.TransferState{
	"QUEUED":     models.TransferQueued,
	"PENDING":    models.TransferQueued,
	"ACTIVE":     models.TransferActive,
	"RETRYING":   models.TransferActive,
	"COMPLETING": models.TransferActive,
	"PAUSED":     models.TransferPaused,
	"COMPLETED":  models.TransferCompleted,
	"FINISHED":   models.TransferCompleted,
	"CANCELLED":  models.TransferCancelled,
	"CANCELED":   models.TransferCancelled,
	"FAILED":     models.TransferFailed,
}

// ParseTransfers turns transfer-status output into records. It accepts both
// '|' separated columns and whitespace aligned columns. Banner lines such as
// the column header or the "no transfers" notice are ignored.
func ParseTransfers(text string) TransfersParse {
	var res TransfersParse
	res.Records = []models.TransferRecord{}

	for _, raw := range splitLines(text) {
		line := strings.TrimSpace(raw)
		if line == "" || isTransfersBanner(line) {
			continue
		}
		var (
			rec models.TransferRecord
			ok  bool
		)
		if strings.Contains(line, "|") {
			rec, ok = parseSeparatedTransfer(line)
		} else {
			rec, ok = parseAlignedTransfer(line)
		}
		if !ok {
			res.Skipped++
			res.SkippedLines = append(res.SkippedLines, raw)
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

func isTransfersBanner(line string) bool {
	upper := strings.ToUpper(line)
	return strings.HasPrefix(upper, "TYPE") ||
		strings.HasPrefix(upper, "NO TRANSFERS") ||
		strings.HasPrefix(upper, "SHOWING") ||
		strings.HasPrefix(upper, "---")
}

func parseSeparatedTransfer(line string) (models.TransferRecord, bool) {
	cols := strings.Split(line, "|")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	if len(cols) < 6 {
		return models.TransferRecord{}, false
	}
	return buildTransfer(cols[0], cols[1], cols[2], cols[3], cols[4], cols[len(cols)-1])
}

func parseAlignedTransfer(line string) (models.TransferRecord, bool) {
	m := transferWSRe.FindStringSubmatch(line)
	if m == nil {
		return models.TransferRecord{}, false
	}
	return buildTransfer(m[1], m[2], m[3], m[4], m[5], m[6])
}

func buildTransfer(dirTok, id, src, dst, progress, stateTok string) (models.TransferRecord, bool) {
	dir, ok := directionTokens[strings.ToUpper(dirTok)]
	if !ok {
		return models.TransferRecord{}, false
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return models.TransferRecord{}, false
	}
	state, ok := stateTokens[strings.ToUpper(stateTok)]
	if !ok {
		return models.TransferRecord{}, false
	}
	done, total, ok := parseProgress(progress)
	if !ok {
		return models.TransferRecord{}, false
	}
	if state == models.TransferCompleted && total > 0 {
		done = total
	}
	return models.TransferRecord{
		ID:         id,
		Direction:  dir,
		SourcePath: src,
		DestPath:   dst,
		BytesTotal: total,
		BytesDone:  done,
		State:      state,
	}, true
}

// parseProgress returns bytes done and bytes total
func parseProgress(s string) (int64, int64, bool) {
	s = strings.TrimSpace(s)
	if m := percentOfRe.FindStringSubmatch(s); m != nil {
		pct, err := parseDecimal(m[1])
		if err != nil {
			return 0, 0, false
		}
		total, err := ParseSize(m[2])
		if err != nil {
			return 0, 0, false
		}
		return int64(math.Round(pct / 100 * float64(total))), total, true
	}
	if m := ratioRe.FindStringSubmatch(s); m != nil {
		done, err1 := ParseSize(m[1])
		total, err2 := ParseSize(m[2])
		if err1 != nil || err2 != nil {
			return 0, 0, false
		}
		return done, total, true
	}
	if percentRe.MatchString(s) || s == "-" {
		return 0, 0, true
	}
	return 0, 0, false
}
