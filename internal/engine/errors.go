package engine

import "fmt"

// Machine-readable error codes surfaced to callers.
const (
	CodeMissingParameter    = "MISSING_PARAMETER"
	CodeInvalidInstanceID   = "INVALID_INSTANCE_ID"
	CodeInvalidTaskID       = "INVALID_TASK_ID"
	CodeTaskNotFound        = "TASK_NOT_FOUND"
	CodeListNotFound        = "LIST_NOT_FOUND"
	CodeItemNotFound        = "ITEM_NOT_FOUND"
	CodeProjectNotFound     = "NO_PROJECT"
	CodeListExists          = "LIST_EXISTS"
	CodeListNotEmpty        = "LIST_NOT_EMPTY"
	CodeCannotDeleteDefault = "CANNOT_DELETE_DEFAULT"
	CodeTaskNotCompleted    = "TASK_NOT_COMPLETED"
	CodeAlreadyAssigned     = "ALREADY_ASSIGNED"
	CodeUnauthorized        = "UNAUTHORIZED"
)

// ValidationError rejects a request whose arguments are missing or malformed.
type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string { return e.Message }

func missingParam(name string) ValidationError {
	return ValidationError{Code: CodeMissingParameter, Message: fmt.Sprintf("%s is required", name)}
}

// NotFoundError signals that a referenced entity does not resolve, including
// archived tasks looked up by id.
type NotFoundError struct {
	Code    string
	Message string
}

func (e NotFoundError) Error() string { return e.Message }

func taskNotFound(id string) NotFoundError {
	return NotFoundError{Code: CodeTaskNotFound, Message: fmt.Sprintf("task %s not found", id)}
}

func listNotFound(id string) NotFoundError {
	return NotFoundError{Code: CodeListNotFound, Message: fmt.Sprintf("list %s not found", id)}
}

// StateConflictError rejects an operation invalid for the entity's current
// state: verify before complete, delete before complete, claim on an
// assigned task, duplicate list creation, delete of a non-empty list.
type StateConflictError struct {
	Code    string
	Message string
}

func (e StateConflictError) Error() string { return e.Message }
