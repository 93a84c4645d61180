package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/learning-path-service/internal/validator"
)

var (
	ErrNoActiveExam     = errors.New("no active exam")
	ErrExamNotFound     = errors.New("exam not found")
	ErrExamTypeMismatch = errors.New("exam does not belong to the requested exam type")

	ErrSessionNotFound     = errors.New("exam session not found")
	ErrSessionNotActive    = errors.New("exam session is not active")
	ErrSessionAccessDenied = errors.New("exam session belongs to another user")

	ErrProgressNotFound = errors.New("user progress not found")

	ErrInvalidWorkbook = errors.New("invalid module workbook")
)

type ValidationErrors = validator.ValidationErrors

// PermissionError reports an action a user is not allowed to take on a resource.
type PermissionError struct {
	UserID     string
	ResourceID string
	Resource   string
	Action     string
	Reason     string
}

func NewPermissionError(userID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %s: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func (e *PermissionError) Unwrap() error {
	if e.Resource == "exam session" {
		return ErrSessionAccessDenied
	}
	return nil
}

// BusinessRuleError is a well-formed request the domain rejects.
type BusinessRuleError struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}
