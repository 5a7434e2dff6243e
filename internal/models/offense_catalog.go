package models

// CatalogEntry is one numbered offense from the student handbook with its
// per-occurrence sanctions.
type CatalogEntry struct {
	Number         string                `json:"number"`
	Classification OffenseClassification `json:"classification"`
	Title          string                `json:"title"`
	Sanctions      SanctionSet           `json:"sanctions"`
}

// SanctionSet holds the sanction text per occurrence.
type SanctionSet struct {
	First  string `json:"first"`
	Second string `json:"second"`
	Third  string `json:"third"`
}

// Sanction returns the text for the given level.
func (s SanctionSet) Sanction(level SanctionLevel) string {
	switch level {
	case SanctionSecond:
		return s.Second
	case SanctionThird:
		return s.Third
	default:
		return s.First
	}
}

// MajorOffenseCatalog lists the handbook's major offenses.
var MajorOffenseCatalog = []CatalogEntry{
	{
		Number: "1", Classification: OffenseMajor,
		Title: "Liquor and Prohibited Drugs",
		Sanctions: SanctionSet{
			First:  "Suspension up to 1 semester",
			Second: "Suspension up to 30 school days / Dismissal",
			Third:  "Dismissal / Expulsion",
		},
	},
	{
		Number: "2", Classification: OffenseMajor,
		Title: "Unauthorized Activities/Illegal Assemblies",
		Sanctions: SanctionSet{
			First:  "Suspension up to 15 school days",
			Second: "Suspension up to 30 school days",
			Third:  "Suspension for one semester",
		},
	},
	{
		Number: "3", Classification: OffenseMajor,
		Title: "Deadly and Dangerous Weapons",
		Sanctions: SanctionSet{
			First:  "Suspension for one semester / Suspension up to 30 school days",
			Second: "Dismissal/Expulsion / Suspension for one semester",
			Third:  "Dismissal",
		},
	},
	{
		Number: "4", Classification: OffenseMajor,
		Title: "Threats/Coercion",
		Sanctions: SanctionSet{
			First:  "Suspension up to 30 school days and restitution, if any",
			Second: "Suspension for one semester and restitution, if any",
			Third:  "Dismissal and restitution, if any",
		},
	},
	{
		Number: "5", Classification: OffenseMajor,
		Title: "Swindling",
		Sanctions: SanctionSet{
			First:  "Suspension up to 30 school days and restitution, if any",
			Second: "Suspension for one semester and restitution, if any",
			Third:  "Dismissal and restitution, if any",
		},
	},
	{
		Number: "7", Classification: OffenseMajor,
		Title: "Violence and Physical Assault/Injury",
		Sanctions: SanctionSet{
			First:  "Suspension for one semester / Expulsion",
			Second: "Dismissal",
			Third:  "",
		},
	},
	{
		Number: "8", Classification: OffenseMajor,
		Title: "Robbery/Theft",
		Sanctions: SanctionSet{
			First:  "Suspension up to 30 school days and replacement of the stolen item",
			Second: "Suspension for one semester and replacement of the stolen item",
			Third:  "Dismissal and replacement of the stolen item",
		},
	},
}

// MinorOffenseCatalog lists the handbook's minor offenses.
var MinorOffenseCatalog = []CatalogEntry{
	{
		Number: "1", Classification: OffenseMinor,
		Title: "Dress Code Violation",
		Sanctions: SanctionSet{
			First:  "Verbal warning",
			Second: "Written reprimand",
			Third:  "Suspension up to 3 school days",
		},
	},
	{
		Number: "2", Classification: OffenseMinor,
		Title: "Improper Use of ID",
		Sanctions: SanctionSet{
			First:  "Verbal warning",
			Second: "Written reprimand",
			Third:  "Suspension up to 3 school days",
		},
	},
	{
		Number: "3", Classification: OffenseMinor,
		Title: "Littering",
		Sanctions: SanctionSet{
			First:  "Verbal warning and community service",
			Second: "Written reprimand and community service",
			Third:  "Suspension up to 3 school days",
		},
	},
	{
		Number: "4", Classification: OffenseMinor,
		Title: "Unauthorized Posting of Materials",
		Sanctions: SanctionSet{
			First:  "Verbal warning",
			Second: "Written reprimand",
			Third:  "Suspension up to 3 school days",
		},
	},
}

// FindCatalogEntry resolves a handbook entry by classification and number.
func FindCatalogEntry(classification OffenseClassification, number string) (CatalogEntry, bool) {
	catalog := MajorOffenseCatalog
	if classification == OffenseMinor {
		catalog = MinorOffenseCatalog
	}
	for _, entry := range catalog {
		if entry.Number == number {
			return entry, true
		}
	}
	return CatalogEntry{}, false
}
