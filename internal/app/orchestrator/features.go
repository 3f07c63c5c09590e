package orchestrator

import (
	"time"

	"github.com/nutrigen/nutrigen/internal/domain"
)

// Feature binds a generation type to its remote function, its cosmetic step
// sequence, the cache keys it dirties, and its user-facing strings.
type Feature struct {
	Type     domain.GenerationType
	Function string

	// Steps shown while the call is in flight. Purely presentational.
	Steps []domain.StepDescriptor

	// InvalidationPatterns are glob patterns with one %s for the user id.
	// Matching cache entries are dropped after a successful generation so
	// dependent views refetch authoritative state.
	InvalidationPatterns []string

	// FallbackMessage is the toast shown when a failure carries no
	// server-provided message.
	FallbackMessage string
	SuccessMessage  string
	AnalyticsEvent  string
}

// Features returns the registry of every AI-backed feature.
func Features() map[domain.GenerationType]Feature {
	return map[domain.GenerationType]Feature{
		domain.GenMealPlan: {
			Type:     domain.GenMealPlan,
			Function: "generate-meal-plan",
			Steps: []domain.StepDescriptor{
				{ID: "profile", Label: "Reading your profile", EstimatedDuration: 2 * time.Second},
				{ID: "targets", Label: "Calculating calorie targets", EstimatedDuration: 3 * time.Second},
				{ID: "preferences", Label: "Applying food preferences", EstimatedDuration: 3 * time.Second},
				{ID: "meals", Label: "Composing your meals", EstimatedDuration: 6 * time.Second},
				{ID: "macros", Label: "Balancing macros", EstimatedDuration: 4 * time.Second},
				{ID: "variety", Label: "Adding variety", EstimatedDuration: 3 * time.Second},
				{ID: "final", Label: "Finalizing your plan", EstimatedDuration: 2 * time.Second},
			},
			InvalidationPatterns: []string{"meal-plan:%s:*"},
			FallbackMessage:      "Could not generate your meal plan. Please try again.",
			SuccessMessage:       "Meal plan generated",
			AnalyticsEvent:       "meal_plan_generated",
		},
		domain.GenExerciseProgram: {
			Type:     domain.GenExerciseProgram,
			Function: "generate-exercise-program",
			Steps: []domain.StepDescriptor{
				{ID: "profile", Label: "Reading your fitness profile", EstimatedDuration: 2 * time.Second},
				{ID: "goals", Label: "Mapping your goals", EstimatedDuration: 3 * time.Second},
				{ID: "split", Label: "Building your weekly split", EstimatedDuration: 5 * time.Second},
				{ID: "exercises", Label: "Selecting exercises", EstimatedDuration: 5 * time.Second},
				{ID: "volume", Label: "Tuning sets and reps", EstimatedDuration: 3 * time.Second},
				{ID: "final", Label: "Finalizing your program", EstimatedDuration: 2 * time.Second},
			},
			InvalidationPatterns: []string{"exercise-program:%s:*"},
			FallbackMessage:      "Could not generate your exercise program. Please try again.",
			SuccessMessage:       "Exercise program generated",
			AnalyticsEvent:       "exercise_program_generated",
		},
		domain.GenMealExchange: {
			Type:     domain.GenMealExchange,
			Function: "exchange-meal",
			Steps: []domain.StepDescriptor{
				{ID: "meal", Label: "Reading the meal", EstimatedDuration: 2 * time.Second},
				{ID: "match", Label: "Finding an equivalent", EstimatedDuration: 4 * time.Second},
				{ID: "macros", Label: "Matching macros", EstimatedDuration: 3 * time.Second},
				{ID: "final", Label: "Swapping it in", EstimatedDuration: 2 * time.Second},
			},
			InvalidationPatterns: []string{"meal-plan:%s:*"},
			FallbackMessage:      "Could not exchange this meal. Please try again.",
			SuccessMessage:       "Meal exchanged",
			AnalyticsEvent:       "meal_exchanged",
		},
		domain.GenSnack: {
			Type:     domain.GenSnack,
			Function: "generate-ai-snack",
			Steps: []domain.StepDescriptor{
				{ID: "budget", Label: "Checking your remaining calories", EstimatedDuration: 2 * time.Second},
				{ID: "ideas", Label: "Generating snack ideas", EstimatedDuration: 4 * time.Second},
				{ID: "pick", Label: "Picking the best fit", EstimatedDuration: 3 * time.Second},
				{ID: "final", Label: "Adding it to your day", EstimatedDuration: 2 * time.Second},
			},
			InvalidationPatterns: []string{"meal-plan:%s:*", "food-log:%s:*"},
			FallbackMessage:      "Could not generate a snack. Please try again.",
			SuccessMessage:       "Snack added",
			AnalyticsEvent:       "add_snack",
		},
		domain.GenFoodImageAnalysis: {
			Type:     domain.GenFoodImageAnalysis,
			Function: "analyze-food-image",
			Steps: []domain.StepDescriptor{
				{ID: "upload", Label: "Processing your photo", EstimatedDuration: 3 * time.Second},
				{ID: "detect", Label: "Identifying the food", EstimatedDuration: 5 * time.Second},
				{ID: "estimate", Label: "Estimating nutrition", EstimatedDuration: 4 * time.Second},
			},
			InvalidationPatterns: []string{"food-log:%s:*"},
			FallbackMessage:      "Could not analyze this photo. Please try again.",
			SuccessMessage:       "Food analyzed",
			AnalyticsEvent:       "food_image_analyzed",
		},
		domain.GenMealImage: {
			Type:     domain.GenMealImage,
			Function: "generate-meal-image",
			Steps: []domain.StepDescriptor{
				{ID: "compose", Label: "Composing the image", EstimatedDuration: 5 * time.Second},
				{ID: "render", Label: "Rendering", EstimatedDuration: 6 * time.Second},
				{ID: "final", Label: "Finishing up", EstimatedDuration: 2 * time.Second},
			},
			InvalidationPatterns: []string{"meal-image:%s:*"},
			FallbackMessage:      "Could not generate the meal image. Please try again.",
			SuccessMessage:       "Image generated",
			AnalyticsEvent:       "meal_image_generated",
		},
	}
}
