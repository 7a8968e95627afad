package dialog

import "github.com/wolfman30/report-ivr/internal/questions"

// questionParams are the placeholders supplied to every question prompt.
var questionParams = []string{"min", "max", "options", "question"}

// PromptContract lists every catalog key the machine can emit with the placeholders it supplies.
func PromptContract(script *questions.Script) map[string][]string {
	contract := map[string][]string{
		"welcome":                {"name"},
		"main_menu":              nil,
		"invalid_choice":         nil,
		"not_numeric":            nil,
		"out_of_range":           {"min", "max"},
		"invalid_date":           nil,
		"skip_mandatory":         nil,
		"answer_echo":            {"question", "answer"},
		"option_item":            {"code", "label"},
		"gift_select":            {"options"},
		"gift_select_additional": {"options"},
		"additional_gift":        nil,
		"confirm_selection":      {"event", "count", "gifts"},
		"confirm_answers":        {"answers"},
		"report_saved":           nil,
		"save_failed":            nil,
		"no_reports":             nil,
		"previous_report":        {"date", "report_type", "count"},
		"goodbye":                nil,
		"unknown_caller":         nil,
		"too_many_attempts":      nil,
		"system_error":           nil,
	}
	if script == nil {
		return contract
	}
	for _, specs := range script.Questions {
		for _, spec := range specs {
			contract[spec.PromptKey] = questionParams
		}
	}
	return contract
}
