package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/obe-hub/gamification-core/internal/domain/shared"
)

func TestTriggersProduceValidNotifications(t *testing.T) {
	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	all := []Notification{
		GradeReleased("n1", "s1", "g1", "sub1", 91.5, at),
		StreakMilestone("n2", "s1", 7, 100, at),
		PeerMilestone("n3", "s2", "s1", "Aigerim", 30, at),
		LevelUp("n4", "s1", 2, 3, 260, at),
	}
	for _, n := range all {
		assert.NoError(t, n.Validate(), "type %s", n.Type)
	}

	assert.Equal(t, TypePeerMilestone, all[2].Type)
	assert.Equal(t, "s2", all[2].UserID)
	assert.Equal(t, "s1", all[2].Metadata["achiever_id"])
	assert.Contains(t, all[2].Message, "Aigerim")
}

func TestPeerMilestone_DefaultName(t *testing.T) {
	n := PeerMilestone("n", "peer", "s1", "", 100, time.Now())
	assert.Contains(t, n.Message, "A classmate reached a 100-day")
}

func TestValidate(t *testing.T) {
	err := Notification{Type: TypeLevelUp, Title: "x"}.Validate()
	assert.True(t, shared.IsValidation(err))

	err = Notification{UserID: "u", Type: "spam", Title: "x"}.Validate()
	assert.True(t, shared.IsValidation(err))

	err = Notification{UserID: "u", Type: TypeLevelUp}.Validate()
	assert.True(t, shared.IsValidation(err))
}
