package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradeTableOrderAndScores(t *testing.T) {
	assert.Equal(t, []GradeLevel{GradeBad, GradePoor, GradeJustSoSo, GradeGood, GradeGreat, GradeGod}, GradeLevels())

	scores := map[GradeLevel]int{}
	for _, grade := range Grades() {
		scores[grade.Level] = grade.Score
	}
	assert.Equal(t, map[GradeLevel]int{
		GradeBad: -1, GradePoor: 1, GradeJustSoSo: 2, GradeGood: 3, GradeGreat: 4, GradeGod: 6,
	}, scores)

	assert.Equal(t, "神中神", GradeGod.Label())
	assert.False(t, GradeLevel("excellent").Valid())
	assert.Equal(t, 0, GradeLevel("excellent").Score())
}

func TestGradesReturnsCopy(t *testing.T) {
	grades := Grades()
	grades[0].Score = 100

	assert.Equal(t, -1, GradeBad.Score())
}

func TestSessionVisibility(t *testing.T) {
	private := Session{MasterID: "m1", IsPublic: false}

	assert.True(t, private.VisibleTo(Actor{UserID: "m1", Role: RoleUser}))
	assert.True(t, private.VisibleTo(Actor{UserID: "a1", Role: RoleAdmin}))
	assert.False(t, private.VisibleTo(Actor{UserID: "u2", Role: RoleUser}))
	assert.False(t, private.VisibleTo(Actor{}))
	assert.True(t, Session{IsPublic: true}.VisibleTo(Actor{}))
}

func TestNormalizeItemID(t *testing.T) {
	assert.Equal(t, "12345", NormalizeItemID(" １２３４５\t"))
	assert.True(t, Session{Items: []string{"12345"}}.HasItem("１２３４５"))
}

func TestParseRoleDefaultsToGuest(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole(" Admin "))
	assert.Equal(t, RoleUser, ParseRole("user"))
	assert.Equal(t, RoleGuest, ParseRole("superuser"))
	assert.Greater(t, RoleAdmin.Rank(), RoleUser.Rank())
	assert.Greater(t, RoleUser.Rank(), RoleGuest.Rank())
}
