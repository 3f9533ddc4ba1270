package bugs

import "github.com/google/uuid"

// CreateBugRequest is the payload for reporting a new bug.
type CreateBugRequest struct {
	Title            string `json:"title" validate:"required,min=3,max=200"`
	Description      string `json:"description" validate:"required,min=3"`
	StepsToReproduce string `json:"stepsToReproduce" validate:"omitempty,min=3"`
}

// EditBugRequest is a partial update to the descriptive fields of a bug.
type EditBugRequest struct {
	Title            *string `json:"title" validate:"omitempty,min=3,max=200"`
	Description      *string `json:"description" validate:"omitempty,min=3"`
	StepsToReproduce *string `json:"stepsToReproduce" validate:"omitempty"`
}

// ClassifyBugRequest sets the triage classification.
type ClassifyBugRequest struct {
	Classification string `json:"classification" validate:"required,oneof=unclassified approved unapproved duplicate"`
}

// AssignBugRequest reassigns a bug. A nil AssignedTo clears the assignment.
type AssignBugRequest struct {
	AssignedTo *uuid.UUID `json:"assignedTo"`
}

// CloseBugRequest closes or reopens a bug.
type CloseBugRequest struct {
	Closed *bool `json:"closed" validate:"required"`
}

// AddCommentRequest attaches a discussion entry.
type AddCommentRequest struct {
	Body string `json:"body" validate:"required,min=1,max=4000"`
}

// AddTestCaseRequest attaches a QA verification record.
type AddTestCaseRequest struct {
	Title  string `json:"title" validate:"required,min=3,max=200"`
	Status string `json:"status" validate:"omitempty,oneof=untested passed failed"`
}
