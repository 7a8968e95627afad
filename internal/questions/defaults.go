package questions

// Default report type keys.
const (
	ReportAttendance        = "attendance"
	ReportEventRegistration = "event_registration"
)

// DefaultGifts is the gift option set offered for event registration.
func DefaultGifts() OptionSet {
	return OptionSet{
		{Code: "1", Label: "Book voucher", ID: "gift-book"},
		{Code: "2", Label: "Board game", ID: "gift-game"},
		{Code: "3", Label: "Museum pass", ID: "gift-museum"},
	}
}

// DefaultReportTypes are used when no definitions are stored.
func DefaultReportTypes() []ReportType {
	return []ReportType{
		{Key: ReportAttendance, Label: "attendance", MenuDigit: "1"},
		{Key: ReportEventRegistration, Label: "event registration", MenuDigit: "2", Selection: DefaultGifts()},
	}
}

// DefaultSpecs are the built-in questions matching DefaultReportTypes.
func DefaultSpecs() []Spec {
	return []Spec{
		{
			Key: "students_present", ReportType: ReportAttendance, Content: "Students present",
			PromptKey: "question_students_present", Type: TypeBounded, Mandatory: true,
			Min: 0, Max: 50, Ordinal: 1, Version: 1,
		},
		{
			Key: "lessons_taught", ReportType: ReportAttendance, Content: "Lessons taught",
			PromptKey: "question_lessons_taught", Type: TypeBounded, Mandatory: true,
			Min: 0, Max: 10, Ordinal: 2, Version: 1,
		},
		{
			Key: "event_type", ReportType: ReportEventRegistration, Content: "Event type",
			PromptKey: "question_event_type", Type: TypeChoice, Mandatory: true,
			Options: OptionSet{
				{Code: "1", Label: "Class trip", ID: "event-trip"},
				{Code: "2", Label: "School party", ID: "event-party"},
				{Code: "3", Label: "Graduation ceremony", ID: "event-ceremony"},
			},
			Ordinal: 1, Version: 1,
		},
		{
			Key: "event_date", ReportType: ReportEventRegistration, Content: "Event date",
			PromptKey: "question_report_date", Type: TypeDate, Mandatory: true,
			DateLayout: LayoutDayMonth, Ordinal: 2, Version: 1,
		},
		{
			Key: "guests", ReportType: ReportEventRegistration, Content: "Guests",
			PromptKey: "question_guests", Type: TypeNumeric, Mandatory: false,
			Ordinal: 3, Version: 1,
		},
	}
}

// NewDefaultProvider serves the built-in definitions.
func NewDefaultProvider() *MemoryProvider {
	p, err := NewMemoryProvider(DefaultReportTypes(), DefaultSpecs())
	if err != nil {
		panic(err)
	}
	return p
}
