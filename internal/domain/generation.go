// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"encoding/json"
	"time"
)

// ─── Generation Types ───────────────────────────────────────────────────────

// GenerationType identifies an AI-backed feature of the app.
type GenerationType string

const (
	GenMealPlan          GenerationType = "meal-plan"
	GenExerciseProgram   GenerationType = "exercise-program"
	GenMealExchange      GenerationType = "meal-exchange"
	GenSnack             GenerationType = "ai-snack"
	GenFoodImageAnalysis GenerationType = "food-image-analysis"
	GenMealImage         GenerationType = "meal-image"
)

// GenerationTypes lists every known generation type.
func GenerationTypes() []GenerationType {
	return []GenerationType{
		GenMealPlan,
		GenExerciseProgram,
		GenMealExchange,
		GenSnack,
		GenFoodImageAnalysis,
		GenMealImage,
	}
}

// Valid reports whether t is a known generation type.
func (t GenerationType) Valid() bool {
	for _, k := range GenerationTypes() {
		if t == k {
			return true
		}
	}
	return false
}

// GenerationStatus is the lifecycle state of a generation log.
type GenerationStatus string

const (
	GenerationPending   GenerationStatus = "pending"
	GenerationCompleted GenerationStatus = "completed"
	GenerationFailed    GenerationStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s GenerationStatus) Terminal() bool {
	return s == GenerationCompleted || s == GenerationFailed
}

// ─── Generation Log ─────────────────────────────────────────────────────────

// GenerationLog is the audit record of a single generation attempt.
// It is created before the remote call is dispatched and receives exactly
// one terminal update after the call settles. CreditsUsed is fixed at
// creation and never re-read afterward.
type GenerationLog struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	Type         GenerationType   `json:"generation_type"`
	PromptData   json.RawMessage  `json:"prompt_data,omitempty"`
	Status       GenerationStatus `json:"status"`
	ResponseData json.RawMessage  `json:"response_data,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	CreditsUsed  int64            `json:"credits_used"`
	CreatedAt    time.Time        `json:"created_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}

// GenerationResult is the opaque payload returned by a remote generation
// function. Its shape varies per feature; the orchestration layer treats it
// as untyped passthrough.
type GenerationResult = json.RawMessage

// ─── Step Descriptors ───────────────────────────────────────────────────────

// StepDescriptor is a cosmetic, client-facing label/duration pair shown
// while a remote call is in flight. It has no relation to real server
// progress.
type StepDescriptor struct {
	ID                string        `json:"id"`
	Label             string        `json:"label"`
	Description       string        `json:"description,omitempty"`
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty"`
}

// ─── Profiles ───────────────────────────────────────────────────────────────

// Role classifies an account.
type Role string

const (
	RoleTrainee Role = "trainee"
	RoleCoach   Role = "coach"
	RoleAdmin   Role = "admin"
)

// UserProfile is the profile snapshot the orchestration core reads.
// The balance is server-owned: callers never assume local authority over
// AIGenerationsRemaining and must go through the credit gate.
type UserProfile struct {
	ID                     string    `json:"id"`
	DisplayName            string    `json:"display_name,omitempty"`
	Role                   Role      `json:"role"`
	Language               string    `json:"language,omitempty"`
	AIGenerationsRemaining int64     `json:"ai_generations_remaining"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// ─── Invocation Payload ─────────────────────────────────────────────────────

// InvocationPayload is the request body every remote generation function
// receives: authenticated user id, profile snapshot, feature-specific
// preferences, and UI language code.
type InvocationPayload struct {
	UserID      string          `json:"user_id"`
	Profile     *UserProfile    `json:"profile,omitempty"`
	Preferences json.RawMessage `json:"preferences,omitempty"`
	Language    string          `json:"language,omitempty"`
}
