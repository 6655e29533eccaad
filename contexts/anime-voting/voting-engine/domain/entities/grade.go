package entities

// GradeLevel is the symbolic grade a participant assigns to one item.
type GradeLevel string

const (
	GradeBad      GradeLevel = "bad"
	GradePoor     GradeLevel = "poor"
	GradeJustSoSo GradeLevel = "justsoso"
	GradeGood     GradeLevel = "good"
	GradeGreat    GradeLevel = "great"
	GradeGod      GradeLevel = "god"
)

// Grade is one row of the grade table.
type Grade struct {
	Level GradeLevel
	Label string
	Score int
}

// gradeTable is fixed at compile time and only exposed through copies.
var gradeTable = [...]Grade{
	{Level: GradeBad, Label: "卧槽，柿！！！", Score: -1},
	{Level: GradePoor, Label: "杂鱼", Score: 1},
	{Level: GradeJustSoSo, Label: "平庸", Score: 2},
	{Level: GradeGood, Label: "值得一看", Score: 3},
	{Level: GradeGreat, Label: "佳作必看", Score: 4},
	{Level: GradeGod, Label: "神中神", Score: 6},
}

// Grades returns the grade table in display order.
func Grades() []Grade {
	items := make([]Grade, len(gradeTable))
	copy(items, gradeTable[:])
	return items
}

// GradeLevels returns the level keys in display order.
func GradeLevels() []GradeLevel {
	levels := make([]GradeLevel, 0, len(gradeTable))
	for _, grade := range gradeTable {
		levels = append(levels, grade.Level)
	}
	return levels
}

func LookupGrade(level GradeLevel) (Grade, bool) {
	for _, grade := range gradeTable {
		if grade.Level == level {
			return grade, true
		}
	}
	return Grade{}, false
}

func (l GradeLevel) Valid() bool {
	_, ok := LookupGrade(l)
	return ok
}

// Score returns 0 for levels outside the table; callers validate first.
func (l GradeLevel) Score() int {
	grade, _ := LookupGrade(l)
	return grade.Score
}

func (l GradeLevel) Label() string {
	grade, _ := LookupGrade(l)
	return grade.Label
}
