package authz

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Action is the kind of operation attempted against the portal.
type Action string

const (
	ActionView    Action = "view"
	ActionCreate  Action = "create"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionPublish Action = "publish"
	ActionManage  Action = "manage"
)

// ParseAction validates a raw action string. Unknown actions fail closed.
func ParseAction(raw string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionView:
		return ActionView, nil
	case ActionCreate:
		return ActionCreate, nil
	case ActionEdit:
		return ActionEdit, nil
	case ActionDelete:
		return ActionDelete, nil
	case ActionPublish:
		return ActionPublish, nil
	case ActionManage:
		return ActionManage, nil
	default:
		return "", fmt.Errorf("authz: unknown action %q", raw)
	}
}

// ResourceRef carries the attributes of a target entity that the evaluator
// consults: identity, creator and lifecycle status.
type ResourceRef struct {
	ID        string
	CreatedBy string
	Status    string
}

// Attributed is implemented by domain entities that can be the target of a
// resource-scoped action.
type Attributed interface {
	PermissionAttributes() ResourceRef
}

// Context is the ephemeral input of one access decision. Now defaults to
// time.Now when zero.
type Context struct {
	User     Identity
	Resource *ResourceRef
	Action   Action
	Now      time.Time
}

// DenyReason categorizes why a decision failed, for logs and metrics. The
// boundary-facing message never includes it verbatim.
type DenyReason string

const (
	ReasonNone             DenyReason = ""
	ReasonRole             DenyReason = "insufficient_role"
	ReasonResourceRequired DenyReason = "resource_required"
	ReasonOwnership        DenyReason = "not_owner"
	ReasonPublish          DenyReason = "publish_restricted"
	ReasonStatus           DenyReason = "status_restricted"
	ReasonTimeWindow       DenyReason = "outside_time_window"
	ReasonInternal         DenyReason = "internal_error"
)

// Decision is the outcome of one evaluation.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// DecisionRecorder receives every evaluated decision, typically to feed a
// metrics counter.
type DecisionRecorder interface {
	RecordDecision(action Action, decision Decision)
}

// Helper accounts may mutate content between 06:00 and 23:00 local time.
const (
	helperWindowStartHour = 6
	helperWindowEndHour   = 23
)

// Evaluator applies the attribute rules (ownership, lifecycle status, time
// window) on top of the role gate. It holds no mutable state; concurrent use
// requires no coordination.
type Evaluator struct {
	Logger   *slog.Logger
	Recorder DecisionRecorder
}

// CanAccess is the boolean shape of Evaluate for inline checks.
func (e Evaluator) CanAccess(ctx Context) bool {
	return e.Evaluate(ctx).Allowed
}

// Evaluate runs every applicable rule in order and stops at the first
// failure, keeping the most specific denial reason. An unexpected panic
// during evaluation is treated as a denial, never an allow.
func (e Evaluator) Evaluate(ctx Context) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			if e.Logger != nil {
				e.Logger.Error("authz evaluation panicked",
					slog.String("user_id", ctx.User.ID),
					slog.String("action", string(ctx.Action)),
					slog.Any("panic", r))
			}
			decision = deny(ReasonInternal)
		}
		if e.Recorder != nil {
			e.Recorder.RecordDecision(ctx.Action, decision)
		}
	}()
	decision = e.evaluate(ctx)
	return decision
}

func (e Evaluator) evaluate(ctx Context) Decision {
	if !roleGate(ctx.User.Role, ctx.Action) {
		e.debugDeny(ctx, ReasonRole)
		return deny(ReasonRole)
	}

	// Views are neither resource- nor time-restricted.
	if ctx.Action == ActionView {
		return allow()
	}

	// Create has no target yet; the role gate already settled it.
	if ctx.Action == ActionCreate {
		return e.finishWithTimeWindow(ctx)
	}

	if ctx.Resource == nil {
		// Caller bug, not a user-facing permission outcome.
		if e.Logger != nil {
			e.Logger.Error("resource-scoped action evaluated without a resource",
				slog.String("user_id", ctx.User.ID),
				slog.String("action", string(ctx.Action)))
		}
		return deny(ReasonResourceRequired)
	}

	if ctx.User.Role != RoleAdmin {
		if ctx.Action == ActionEdit || ctx.Action == ActionDelete {
			if ctx.Resource.CreatedBy != ctx.User.ID {
				e.debugDeny(ctx, ReasonOwnership)
				return deny(ReasonOwnership)
			}
		}
		if ctx.Action == ActionPublish {
			e.debugDeny(ctx, ReasonPublish)
			return deny(ReasonPublish)
		}
	}

	if ctx.Action == ActionEdit || ctx.Action == ActionDelete {
		if !statusAllowsModify(ctx.Resource.Status, ctx.User.Role) {
			e.debugDeny(ctx, ReasonStatus)
			return deny(ReasonStatus)
		}
	}

	return e.finishWithTimeWindow(ctx)
}

func (e Evaluator) finishWithTimeWindow(ctx Context) Decision {
	if !withinTimeWindow(ctx) {
		e.debugDeny(ctx, ReasonTimeWindow)
		return deny(ReasonTimeWindow)
	}
	return allow()
}

// roleGate maps actions to the minimum role tier, independent of any
// resource. Unknown actions fail closed.
func roleGate(role Role, action Action) bool {
	switch action {
	case ActionView:
		return role == RoleAdmin || role == RoleHelper || role == RoleGuest
	case ActionCreate, ActionEdit, ActionDelete:
		return role == RoleAdmin || role == RoleHelper
	case ActionPublish, ActionManage:
		return role == RoleAdmin
	default:
		return false
	}
}

// statusAllowsModify enforces the lifecycle restriction: published or active
// content may only be modified by ADMIN. Missing status imposes nothing.
func statusAllowsModify(status string, role Role) bool {
	if status == "" || role == RoleAdmin {
		return true
	}
	switch strings.ToLower(status) {
	case "published", "active":
		return false
	default:
		return true
	}
}

// withinTimeWindow applies the environmental rule: ADMIN is unrestricted,
// HELPER is limited to working hours, and any other role may only act
// outside views during no window at all.
func withinTimeWindow(ctx Context) bool {
	switch ctx.User.Role {
	case RoleAdmin:
		return true
	case RoleHelper:
		now := ctx.Now
		if now.IsZero() {
			now = time.Now()
		}
		hour := now.Hour()
		return hour >= helperWindowStartHour && hour < helperWindowEndHour
	default:
		return ctx.Action == ActionView
	}
}

func (e Evaluator) debugDeny(ctx Context, reason DenyReason) {
	if e.Logger == nil {
		return
	}
	attrs := []any{
		slog.String("user_id", ctx.User.ID),
		slog.String("role", string(ctx.User.Role)),
		slog.String("action", string(ctx.Action)),
		slog.String("reason", string(reason)),
	}
	if ctx.Resource != nil {
		attrs = append(attrs, slog.String("resource_id", ctx.Resource.ID))
	}
	e.Logger.Debug("access denied", attrs...)
}

// AvailableActions returns the subset of actions the user may perform on the
// given resource (or without one, for view/create) at the current time.
func (e Evaluator) AvailableActions(user Identity, resource *ResourceRef) []Action {
	return e.AvailableActionsAt(user, resource, time.Now())
}

// AvailableActionsAt is AvailableActions with an explicit clock.
func (e Evaluator) AvailableActionsAt(user Identity, resource *ResourceRef, now time.Time) []Action {
	candidates := []Action{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionPublish}
	available := make([]Action, 0, len(candidates))
	for _, action := range candidates {
		if e.CanAccess(Context{User: user, Resource: resource, Action: action, Now: now}) {
			available = append(available, action)
		}
	}
	return available
}

// FilterAccessible returns only the items the user may perform action on.
// Denied items are silently omitted so list pages never error per row.
func FilterAccessible[T Attributed](e Evaluator, user Identity, items []T, action Action) []T {
	return FilterAccessibleAt(e, user, items, action, time.Now())
}

// FilterAccessibleAt is FilterAccessible with an explicit clock.
func FilterAccessibleAt[T Attributed](e Evaluator, user Identity, items []T, action Action, now time.Time) []T {
	accessible := make([]T, 0, len(items))
	for _, item := range items {
		ref := item.PermissionAttributes()
		if e.CanAccess(Context{User: user, Resource: &ref, Action: action, Now: now}) {
			accessible = append(accessible, item)
		}
	}
	return accessible
}
