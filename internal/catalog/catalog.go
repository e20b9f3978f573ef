package catalog

// Static grade reference data for the Kenyan CBC curriculum tiers. Loaded
// once as process-wide read-only state; safe for concurrent reads.

const (
	CategoryPrimary = "primary"
	CategoryJunior  = "junior"
	CategorySenior  = "senior"
)

type Entry struct {
	Grade    string   `json:"grade"`
	Category string   `json:"category"`
	Tier     string   `json:"tier"`
	PriceKSh int      `json:"price_ksh"`
	Subjects []string `json:"subjects"`
}

var (
	primarySubjects = []string{"Mathematics", "English", "Kiswahili", "Environmental Studies", "Creative Arts"}
	juniorSubjects  = []string{"Mathematics", "English", "Kiswahili", "Integrated Science", "Social Studies", "Creative Arts"}
	seniorSubjects  = []string{"Mathematics", "English", "Kiswahili", "Physics", "Chemistry", "Biology", "Geography", "History"}

	// Slugged subject identifiers used to seed progress rows.
	primarySlugs = []string{"mathematics", "english", "kiswahili", "environmental-studies", "creative-arts"}
	juniorSlugs  = []string{"mathematics", "english", "kiswahili", "integrated-science", "social-studies", "creative-arts"}
	seniorSlugs  = []string{"mathematics", "english", "kiswahili", "physics", "chemistry", "biology", "geography", "history"}
)

var gradeOrder = []string{
	"grade-4", "grade-5", "grade-6",
	"grade-7", "grade-8", "grade-9",
	"grade-10", "grade-11", "grade-12",
}

var entries = map[string]Entry{
	"grade-4":  {Grade: "grade-4", Category: CategoryPrimary, Tier: "Primary CBC", PriceKSh: 499, Subjects: primarySubjects},
	"grade-5":  {Grade: "grade-5", Category: CategoryPrimary, Tier: "Primary CBC", PriceKSh: 499, Subjects: primarySubjects},
	"grade-6":  {Grade: "grade-6", Category: CategoryPrimary, Tier: "Primary CBC", PriceKSh: 499, Subjects: primarySubjects},
	"grade-7":  {Grade: "grade-7", Category: CategoryJunior, Tier: "Junior Secondary", PriceKSh: 899, Subjects: juniorSubjects},
	"grade-8":  {Grade: "grade-8", Category: CategoryJunior, Tier: "Junior Secondary", PriceKSh: 899, Subjects: juniorSubjects},
	"grade-9":  {Grade: "grade-9", Category: CategoryJunior, Tier: "Junior Secondary", PriceKSh: 899, Subjects: juniorSubjects},
	"grade-10": {Grade: "grade-10", Category: CategorySenior, Tier: "Senior Secondary", PriceKSh: 1499, Subjects: seniorSubjects},
	"grade-11": {Grade: "grade-11", Category: CategorySenior, Tier: "Senior Secondary", PriceKSh: 1499, Subjects: seniorSubjects},
	"grade-12": {Grade: "grade-12", Category: CategorySenior, Tier: "Senior Secondary", PriceKSh: 1499, Subjects: seniorSubjects},
}

// Lookup returns the catalog entry for a grade identifier.
func Lookup(grade string) (Entry, bool) {
	e, ok := entries[grade]
	return e, ok
}

// Grades returns all entries in ascending grade order.
func Grades() []Entry {
	out := make([]Entry, 0, len(gradeOrder))
	for _, g := range gradeOrder {
		out = append(out, entries[g])
	}
	return out
}

func ValidCategory(category string) bool {
	switch category {
	case CategoryPrimary, CategoryJunior, CategorySenior:
		return true
	}
	return false
}

// SubjectsForCategory returns the display subject names for a grade category.
func SubjectsForCategory(category string) []string {
	switch category {
	case CategoryPrimary:
		return primarySubjects
	case CategoryJunior:
		return juniorSubjects
	case CategorySenior:
		return seniorSubjects
	}
	return nil
}

// SubjectSlugsForCategory returns the subject identifiers used for progress
// tracking rows.
func SubjectSlugsForCategory(category string) []string {
	switch category {
	case CategoryPrimary:
		return primarySlugs
	case CategoryJunior:
		return juniorSlugs
	case CategorySenior:
		return seniorSlugs
	}
	return nil
}
