package catalog

// DefaultTexts are the built-in English prompts. Rows in text_templates override them key by key.
func DefaultTexts() map[string]string {
	return map[string]string{
		"welcome":                "Hello {name}.",
		"main_menu":              "To report attendance press 1. To register for an event or gift press 2. To hear your previous reports press 3.",
		"invalid_choice":         "That choice is not available.",
		"not_numeric":            "Please enter digits only.",
		"out_of_range":           "Please enter a number between {min} and {max}.",
		"invalid_date":           "That date is not valid.",
		"skip_mandatory":         "This question cannot be skipped.",
		"answer_echo":            "{question}: you entered {answer}.",
		"option_item":            "For {label} press {code}.",
		"gift_select":            "Choose a gift. {options}",
		"gift_select_additional": "Choose an additional gift. {options}",
		"additional_gift":        "To add another gift press 1. To continue press 2.",
		"confirm_selection":      "For {event} you selected {count} gifts: {gifts}. To confirm press 1. To choose again press 2.",
		"confirm_answers":        "You answered {answers}. To confirm press 1. To answer again press 2.",
		"report_saved":           "Your report was saved. Goodbye.",
		"save_failed":            "We could not save your report.",
		"no_reports":             "You have no previous reports.",
		"previous_report":        "On {date} you sent a {report_type} report with {count} answers.",
		"goodbye":                "Goodbye.",
		"unknown_caller":         "Your number is not registered. Goodbye.",
		"too_many_attempts":      "Too many invalid entries. Goodbye.",
		"system_error":           "We are experiencing a technical problem. Please call again later.",

		"question_students_present": "How many students attended today? Enter a number between {min} and {max}.",
		"question_lessons_taught":   "How many lessons did you teach? Enter a number between {min} and {max}.",
		"question_report_date":      "Enter the date of the report as day and month.",
		"question_event_type":       "Choose the event type. {options}",
		"question_guests":           "How many guests will attend? Press star to skip.",
	}
}
