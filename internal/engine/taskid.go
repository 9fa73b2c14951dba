package engine

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"taskline/internal/domain"
)

const (
	personalTaskPrefix = "ptask-"
	projectTaskPrefix  = "prjtask-"
)

func randHex(n int) string {
	buf := make([]byte, (n+1)/2)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)[:n]
}

func taskSeq(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 36) + randHex(4)
}

// personalTaskID builds the personal-namespace id ptask-{listID}-{seq}.
func personalTaskID(listID string, now time.Time) string {
	return personalTaskPrefix + listID + "-" + taskSeq(now)
}

// projectTaskID builds the project-namespace id
// prjtask-{projectID}-{listID}-{seq}.
func projectTaskID(projectID, listID string, now time.Time) string {
	return projectTaskPrefix + projectID + "-" + listID + "-" + taskSeq(now)
}

// ParseTaskScope reads the scope out of a task id. The prefix alone decides
// which authorization and listing rules apply; no store lookup is needed.
func ParseTaskScope(taskID string) (domain.TaskScope, bool) {
	switch {
	case strings.HasPrefix(taskID, projectTaskPrefix):
		return domain.ScopeProject, true
	case strings.HasPrefix(taskID, personalTaskPrefix):
		return domain.ScopePersonal, true
	}
	return "", false
}

func checklistID() string {
	return "list-" + randHex(8)
}

func checklistItemID() string {
	return "item-" + randHex(8)
}
