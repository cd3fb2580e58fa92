package audit

import (
	"context"

	"github.com/john0isaac/fastroom/pkg/log"
)

// Audit actions for room and moderation lifecycle.
const (
	ActionCreateRoom    = "room.create"
	ActionUpdateRoom    = "room.update"
	ActionDeleteRoom    = "room.delete"
	ActionJoinRoom      = "room.member.join"
	ActionRemoveMember  = "room.member.remove"
	ActionUpdateMember  = "room.member.update"
	ActionEditMessage   = "room.message.edit"
	ActionDeleteMessage = "room.message.delete"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID uint, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Uint(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID uint, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Uint(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
