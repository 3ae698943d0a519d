package postgres

// Migrations returns the embedded schema migrations in order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_students", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_gamification", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_outcomes", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_notifications", UpSQL: migration004Up, DownSQL: migration004Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: STUDENTS AND ENROLLMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS students (
    id TEXT PRIMARY KEY,
    display_name TEXT NOT NULL DEFAULT '',
    anonymous_leaderboard BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS courses (
    id TEXT PRIMARY KEY,
    program_id TEXT,
    title TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS course_enrollments (
    course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    enrolled_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (course_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_enrollments_student ON course_enrollments(student_id);
`

const migration001Down = `
DROP TABLE IF EXISTS course_enrollments;
DROP TABLE IF EXISTS courses;
DROP TABLE IF EXISTS students;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: XP LEDGER, BONUS EVENTS, GAMIFICATION STATE
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Append-only. The lifetime total is always SUM(xp_amount).
CREATE TABLE IF NOT EXISTS xp_transactions (
    id UUID PRIMARY KEY,
    student_id TEXT NOT NULL,
    xp_amount INTEGER NOT NULL,
    source TEXT NOT NULL,
    reference_id TEXT,
    note TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_source CHECK (source IN (
        'login', 'submission', 'badge', 'admin_adjustment',
        'streak_milestone', 'grade', 'quest', 'bonus'
    ))
);

CREATE INDEX IF NOT EXISTS idx_xp_transactions_student ON xp_transactions(student_id, created_at DESC);

CREATE TABLE IF NOT EXISTS bonus_xp_events (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name TEXT NOT NULL,
    multiplier NUMERIC(6,2) NOT NULL,
    start_date TIMESTAMPTZ NOT NULL,
    end_date TIMESTAMPTZ NOT NULL,

    CONSTRAINT valid_multiplier CHECK (multiplier >= 1),
    CONSTRAINT valid_window CHECK (end_date >= start_date)
);

CREATE INDEX IF NOT EXISTS idx_bonus_xp_window ON bonus_xp_events(start_date, end_date);

-- Derived cache. Rebuildable from xp_transactions at any time.
CREATE TABLE IF NOT EXISTS gamification_state (
    student_id TEXT PRIMARY KEY,
    xp_total INTEGER NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    streak_count INTEGER NOT NULL DEFAULT 0,
    last_login_date DATE,
    streak_freezes_available INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_level CHECK (level BETWEEN 1 AND 50),
    CONSTRAINT valid_streak CHECK (streak_count >= 0),
    CONSTRAINT valid_freezes CHECK (streak_freezes_available >= 0)
);

CREATE INDEX IF NOT EXISTS idx_gamification_state_xp ON gamification_state(xp_total DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS gamification_state;
DROP TABLE IF EXISTS bonus_xp_events;
DROP TABLE IF EXISTS xp_transactions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: ACADEMIC CHAIN, OUTCOME GRAPH, EVIDENCE, ATTAINMENT
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS outcomes (
    id TEXT PRIMARY KEY,
    tier TEXT NOT NULL,
    code TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',

    CONSTRAINT valid_tier CHECK (tier IN ('CLO', 'PLO', 'ILO'))
);

CREATE TABLE IF NOT EXISTS outcome_mappings (
    source_outcome_id TEXT NOT NULL REFERENCES outcomes(id) ON DELETE CASCADE,
    target_outcome_id TEXT NOT NULL REFERENCES outcomes(id) ON DELETE CASCADE,
    weight DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (source_outcome_id, target_outcome_id),

    CONSTRAINT valid_weight CHECK (weight > 0)
);

CREATE INDEX IF NOT EXISTS idx_outcome_mappings_target ON outcome_mappings(target_outcome_id);

CREATE TABLE IF NOT EXISTS assignments (
    id TEXT PRIMARY KEY,
    course_id TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS assignment_clos (
    assignment_id TEXT NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
    clo_id TEXT NOT NULL REFERENCES outcomes(id) ON DELETE CASCADE,
    weight DOUBLE PRECISION NOT NULL DEFAULT 1,
    PRIMARY KEY (assignment_id, clo_id)
);

CREATE TABLE IF NOT EXISTS submissions (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL,
    assignment_id TEXT NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
    submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS grades (
    id TEXT PRIMARY KEY,
    submission_id TEXT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
    score_percent DOUBLE PRECISION NOT NULL,
    graded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_score CHECK (score_percent BETWEEN 0 AND 100)
);

-- One evidence row per (grade, CLO) so re-delivered grade events cannot double count.
CREATE TABLE IF NOT EXISTS evidence (
    id UUID PRIMARY KEY,
    student_id TEXT NOT NULL,
    submission_id TEXT NOT NULL,
    grade_id TEXT NOT NULL,
    clo_id TEXT NOT NULL,
    score_percent DOUBLE PRECISION NOT NULL,
    attainment_level TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_evidence_grade_clo UNIQUE (grade_id, clo_id)
);

CREATE INDEX IF NOT EXISTS idx_evidence_student_clo ON evidence(student_id, clo_id);

CREATE TABLE IF NOT EXISTS outcome_attainment (
    outcome_id TEXT NOT NULL,
    student_id TEXT NOT NULL,
    course_id TEXT NOT NULL DEFAULT '',
    scope TEXT NOT NULL,
    attainment_percent DOUBLE PRECISION NOT NULL,
    sample_count INTEGER NOT NULL,
    last_calculated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (outcome_id, student_id, course_id, scope),

    CONSTRAINT valid_scope CHECK (scope IN ('student_course', 'course', 'program')),
    CONSTRAINT valid_percent CHECK (attainment_percent BETWEEN 0 AND 100)
);

CREATE INDEX IF NOT EXISTS idx_attainment_student ON outcome_attainment(student_id);
`

const migration003Down = `
DROP TABLE IF EXISTS outcome_attainment;
DROP TABLE IF EXISTS evidence;
DROP TABLE IF EXISTS grades;
DROP TABLE IF EXISTS submissions;
DROP TABLE IF EXISTS assignment_clos;
DROP TABLE IF EXISTS assignments;
DROP TABLE IF EXISTS outcome_mappings;
DROP TABLE IF EXISTS outcomes;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: NOTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS notifications (
    id UUID PRIMARY KEY,
    user_id TEXT NOT NULL,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL DEFAULT '',
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
    is_read BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_type CHECK (type IN ('grade_released', 'streak_milestone', 'peer_milestone', 'level_up'))
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS notifications;
`
