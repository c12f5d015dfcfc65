package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttendanceSummaryRate(t *testing.T) {
	assert.Equal(t, 100.0, AttendanceSummary{}.Rate())
	assert.Equal(t, 75.0, AttendanceSummary{Present: 3, Total: 4}.Rate())
}

func TestPerItemResultBuilders(t *testing.T) {
	assert.Equal(t, PerItemResult{StudentID: "s1", Outcome: OutcomeSuccess}, Succeeded("s1"))
	failed := Failed("s2", errors.New("write grade: timeout"))
	assert.Equal(t, OutcomeFailure, failed.Outcome)
	assert.Equal(t, "write grade: timeout", failed.Reason)
}

func TestClassHasStudent(t *testing.T) {
	c := Class{StudentIDs: []string{"a", "b"}}
	assert.True(t, c.HasStudent("b"))
	assert.False(t, c.HasStudent("c"))
}

func TestActorFromClaims(t *testing.T) {
	assert.Equal(t, Actor{}, ActorFromClaims(nil))
	actor := ActorFromClaims(&JWTClaims{UserID: "u1", Name: "Ana", Role: RoleTeacher})
	assert.Equal(t, Actor{UserID: "u1", Name: "Ana", Role: RoleTeacher}, actor)
}
