package service

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ai520510xyf-del/cl-dev-tool-server/internal/client"
)

// Timeline event types that produce completed approval nodes.
const (
	eventPass         = "PASS"
	eventRemoveRepeat = "REMOVE_REPEAT"
	eventReject       = "REJECT"
	eventCC           = "CC"
)

const taskStatusPending = "PENDING"

// timeCloseThreshold flags completed nodes whose times are close enough
// that the rendered order alone is misleading.
const timeCloseThreshold = 60 * time.Second

// TimelineService normalizes raw Feishu approval instances into the
// header + three-bucket timeline consumed by the frontend. It is a pure
// transformation; all state is per call.
type TimelineService struct {
	loc *time.Location
	log zerolog.Logger
}

// NewTimelineService creates a timeline service rendering times in loc.
func NewTimelineService(loc *time.Location, log zerolog.Logger) *TimelineService {
	return &TimelineService{loc: loc, log: log}
}

// ProcessApprovalData builds the display payload for one instance.
// userNames optionally maps raw user ids to display names; a nil map
// falls back to raw ids everywhere.
func (s *TimelineService) ProcessApprovalData(raw *client.ApprovalInstance, userNames map[string]string) *ProcessedApprovalData {
	applicant, _ := ResolveIdentity(raw.OpenID, raw.UserID, userNames)

	data := &ProcessedApprovalData{
		Header: ApprovalHeader{
			InstanceID:   raw.InstanceCode,
			ApprovalName: raw.ApprovalName,
			SerialNumber: raw.SerialNumber,
			Applicant:    applicant,
			ApplyTime:    FormatTimestamp(raw.StartTime, s.loc),
			Status:       MapInstanceStatus(raw.Status),
		},
		Timeline: s.processTimeline(raw.Timeline, raw.TaskList, userNames),
	}

	s.log.Debug().
		Str("instance_code", raw.InstanceCode).
		Int("completed", len(data.Timeline.Completed)).
		Int("pending", len(data.Timeline.Pending)).
		Int("cc", len(data.Timeline.CC)).
		Msg("approval instance processed")
	return data
}

// processTimeline classifies raw events and tasks into the three
// buckets. Approval events (PASS, REMOVE_REPEAT, REJECT) become
// completed nodes, CC events expand into one node per recipient, and
// PENDING tasks become pending nodes; any other event type is ignored.
// Completed and pending nodes share one 1-based id counter in
// traversal order.
func (s *TimelineService) processTimeline(events []client.TimelineEvent, tasks []client.Task, userNames map[string]string) TimelineData {
	completed := []ProcessedNode{}
	pending := []ProcessedNode{}
	cc := []CCNode{}

	approvalID := 1
	ccID := 1

	for _, event := range events {
		switch event.Type {
		case eventPass, eventRemoveRepeat, eventReject:
			nodeName := nodeNameFromTasks(tasks, event.TaskID)
			if nodeName == "" {
				nodeName = fallbackNodeName
			}

			approverName, _ := ResolveIdentity(event.OpenID, event.UserID, userNames)

			status := StatusApproved
			if event.Type == eventReject {
				status = StatusRejected
			}

			completed = append(completed, ProcessedNode{
				ID:           strconv.Itoa(approvalID),
				NodeName:     nodeName,
				NodeType:     "APPROVAL",
				ApproverName: approverName,
				Time:         FormatTimestamp(event.CreateTime, s.loc),
				Status:       status,
				Comment:      event.Comment,
			})
			approvalID++

		case eventCC:
			for _, ccUser := range event.CCUsers {
				ccPersonName, _ := ResolveIdentity(ccUser.OpenID, ccUser.UserID, userNames)

				cc = append(cc, CCNode{
					ID:           "cc" + strconv.Itoa(ccID),
					CCNodeName:   ccNodeName,
					CCPersonName: ccPersonName,
					CCTime:       FormatTimestamp(event.CreateTime, s.loc),
					Status:       ccNodeStatus,
				})
				ccID++
			}
		}
	}

	for _, task := range tasks {
		if task.Status != taskStatusPending {
			continue
		}

		nodeName := task.NodeName
		if nodeName == "" {
			nodeName = fallbackPendingName
		}
		approverName, _ := ResolveIdentity(task.OpenID, task.UserID, userNames)

		pending = append(pending, ProcessedNode{
			ID:           strconv.Itoa(approvalID),
			NodeName:     nodeName,
			NodeType:     "APPROVAL",
			ApproverName: approverName,
			Time:         FormatTimestamp(task.StartTime, s.loc),
			Status:       StatusPending,
		})
		approvalID++
	}

	// Sort completed ascending by display time; nodes without a
	// resolvable time parse to the zero sentinel and sort first.
	sort.SliceStable(completed, func(i, j int) bool {
		return parseDisplayTime(completed[i].Time, s.loc).Before(parseDisplayTime(completed[j].Time, s.loc))
	})

	s.annotateCloseTimes(completed)

	return TimelineData{Completed: completed, Pending: pending, CC: cc}
}

// annotateCloseTimes flags each completed node whose time is within 60
// seconds of the previous one, so the UI can warn that the displayed
// order between them is not meaningful.
func (s *TimelineService) annotateCloseTimes(completed []ProcessedNode) {
	for i := 1; i < len(completed); i++ {
		current := parseDisplayTime(completed[i].Time, s.loc)
		previous := parseDisplayTime(completed[i-1].Time, s.loc)

		diff := current.Sub(previous)
		if diff < 0 {
			diff = -diff
		}
		if diff > timeCloseThreshold {
			continue
		}

		seconds := diff.Seconds()
		completed[i].IsTimeClose = true
		completed[i].TimeDiffSeconds = seconds
		if seconds < 5 {
			completed[i].TimeCloseNote = "几乎同时"
		} else {
			completed[i].TimeCloseNote = fmt.Sprintf("相隔 %d 秒", int(seconds))
		}
	}
}

// nodeNameFromTasks resolves an event's task_id to the task's node
// name. Returns "" when the id is absent or matches no task.
func nodeNameFromTasks(tasks []client.Task, taskID string) string {
	if taskID == "" {
		return ""
	}
	for _, task := range tasks {
		if task.ID == taskID {
			return task.NodeName
		}
	}
	return ""
}
