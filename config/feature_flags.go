package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles with gradual rollout.
// Rollout buckets are keyed by student ID so a student stays in the same
// bucket across restarts.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	subjectOverrides map[string]map[string]bool // studentID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	SubjectID string // Student ID
	IsAdmin   bool
}

// Predefined feature flag names.
const (
	// === Notification Features ===
	FeatureNotifyPeerMilestone = "notify.peer_milestone" // Tell classmates about 7/30/100 day streaks
	FeatureNotifyStreakSelf    = "notify.streak_self"    // Tell the achiever about a milestone
	FeatureNotifyLevelUp       = "notify.level_up"       // "You reached level N"

	// === Read Path ===
	FeatureCacheStateView = "cache.state_view" // Serve gamification state from Redis

	// === Admin ===
	FeatureAdminRebuild = "admin.rebuild" // Expose the ledger re-aggregation endpoint
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:         make(map[string]*Feature),
		subjectOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureNotifyPeerMilestone] = &Feature{
		Name:           FeatureNotifyPeerMilestone,
		Description:    "Notify course peers about streak milestones",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyStreakSelf] = &Feature{
		Name:           FeatureNotifyStreakSelf,
		Description:    "Notify the student about their own streak milestone",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyLevelUp] = &Feature{
		Name:           FeatureNotifyLevelUp,
		Description:    "Notify the student on level up",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureCacheStateView] = &Feature{
		Name:           FeatureCacheStateView,
		Description:    "Cache gamification state views in Redis",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Off by default: rebuild rewrites every cached row of a student.
	ff.features[FeatureAdminRebuild] = &Feature{
		Name:           FeatureAdminRebuild,
		Description:    "Expose POST /api/v1/gamification/rebuild",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_NOTIFY_PEER_MILESTONE=25 (25% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		val := os.Getenv(featureNameToEnvKey(name))
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// "notify.peer_milestone" -> "FEATURE_NOTIFY_PEER_MILESTONE"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
// A nil context evaluates the global switch only.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	return ff.isEnabledLocked(featureName, ctx, time.Now())
}

func (ff *FeatureFlags) isEnabledLocked(featureName string, ctx *FeatureContext, now time.Time) bool {
	if ctx != nil && ctx.SubjectID != "" {
		if overrides, ok := ff.subjectOverrides[ctx.SubjectID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	if ctx != nil && ctx.IsAdmin {
		return true
	}

	if !feature.Enabled {
		return false
	}

	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	if feature.RolloutPercent < 100 && ctx != nil && ctx.SubjectID != "" {
		return inRollout(ctx.SubjectID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// EnabledFor returns a predicate bound to one feature.
func (ff *FeatureFlags) EnabledFor(featureName string) func(subjectID string) bool {
	return func(subjectID string) bool {
		return ff.IsEnabled(featureName, &FeatureContext{SubjectID: subjectID})
	}
}

// inRollout uses consistent hashing so subjects stay in their bucket.
func inRollout(subjectID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(subjectID))
	return int(h.Sum32()%100) < percent
}

// SetSubjectOverride forces a feature on or off for one student.
func (ff *FeatureFlags) SetSubjectOverride(subjectID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.subjectOverrides[subjectID]; !ok {
		ff.subjectOverrides[subjectID] = make(map[string]bool)
	}
	ff.subjectOverrides[subjectID][featureName] = enabled
}

// ClearSubjectOverrides removes all overrides for a student.
func (ff *FeatureFlags) ClearSubjectOverrides(subjectID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.subjectOverrides, subjectID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
