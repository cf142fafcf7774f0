// Package policy decides whether a requester may perform an action on a task.
//
// Decide is a pure function of the resolved requester, the action and a
// snapshot of the task's ownership. It never touches storage; callers look the
// task up first so that an unknown id is reported as not found before any
// permission decision is made.
package policy

import "taskmanager/internal/models"

type Action string

const (
	ActionList           Action = "list"
	ActionRead           Action = "read"
	ActionCreate         Action = "create"
	ActionUpdate         Action = "update"
	ActionChangeAssignee Action = "change_assignee"
	ActionDelete         Action = "delete"
	ActionChangeStatus   Action = "change_status"
)

// Requester is the identity resolved from a verified token. Its role comes
// from the user record, never from the request.
type Requester struct {
	ID   int
	Role models.Role
}

func (r Requester) IsAdmin() bool { return r.Role == models.RoleAdmin }

// Resource is the ownership snapshot of a task. For ActionCreate and
// ActionChangeAssignee, AssigneeID holds the proposed assignee.
type Resource struct {
	CreatorID  int
	AssigneeID int
}

// ResourceOf builds the ownership snapshot of a stored task.
func ResourceOf(t models.Task) Resource {
	return Resource{CreatorID: t.CreatedBy.ID, AssigneeID: t.AssignedTo.ID}
}

type Decision struct {
	Allowed bool
	Reason  string
}

var allow = Decision{Allowed: true}

func deny(reason string) Decision { return Decision{Reason: reason} }

const (
	ReasonRead         = "Not authorized to view this task"
	ReasonSelfAssign   = "Regular users can only assign tasks to themselves"
	ReasonUpdate       = "Not authorized to update this task"
	ReasonDelete       = "Not authorized to delete this task"
	ReasonChangeStatus = "Not authorized to change the status of this task"
	ReasonUnknown      = "Unknown action"
)

func Decide(req Requester, action Action, res Resource) Decision {
	if action == ActionList {
		return allow
	}
	if req.IsAdmin() {
		switch action {
		case ActionRead, ActionCreate, ActionUpdate, ActionChangeAssignee, ActionDelete, ActionChangeStatus:
			return allow
		}
		return deny(ReasonUnknown)
	}

	isCreator := req.ID == res.CreatorID
	isAssignee := req.ID == res.AssigneeID

	switch action {
	case ActionRead:
		if isCreator || isAssignee {
			return allow
		}
		return deny(ReasonRead)
	case ActionCreate, ActionChangeAssignee:
		if isAssignee {
			return allow
		}
		return deny(ReasonSelfAssign)
	case ActionUpdate:
		if isCreator {
			return allow
		}
		return deny(ReasonUpdate)
	case ActionDelete:
		if isCreator {
			return allow
		}
		return deny(ReasonDelete)
	case ActionChangeStatus:
		if isCreator || isAssignee {
			return allow
		}
		return deny(ReasonChangeStatus)
	}
	return deny(ReasonUnknown)
}

// SeesAll reports whether a task listing for req is unrestricted.
func SeesAll(req Requester) bool { return req.IsAdmin() }

// CanRead is shorthand for the ActionRead decision.
func CanRead(req Requester, res Resource) bool {
	return Decide(req, ActionRead, res).Allowed
}

// Permissions annotates a task with the controls req may use on it. Reassign
// means "may pick any assignee", which only admins can.
func Permissions(req Requester, res Resource) models.Permissions {
	return models.Permissions{
		Edit:         Decide(req, ActionUpdate, res).Allowed,
		Delete:       Decide(req, ActionDelete, res).Allowed,
		Reassign:     req.IsAdmin(),
		ChangeStatus: Decide(req, ActionChangeStatus, res).Allowed,
	}
}
