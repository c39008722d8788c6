package tools

// ToolID identifies one of the tools the service ships.
type ToolID int

const (
	ToolUnknown ToolID = iota
	ToolTime
	ToolConceptExplainer
	ToolCalculator
	ToolStockPrice
	ToolCSVSummary
	ToolPDFReader
	ToolFinalAnswer
)

var toolNames = [...]string{
	ToolUnknown:          "",
	ToolTime:             "Time",
	ToolConceptExplainer: "Concept Explainer",
	ToolCalculator:       "Calculator",
	ToolStockPrice:       "Stock Price",
	ToolCSVSummary:       "CSV Summary",
	ToolPDFReader:        "PDF Reader",
	ToolFinalAnswer:      "Final Answer",
}

var toolIDsByName = func() map[string]ToolID {
	m := make(map[string]ToolID, len(toolNames))
	for id, name := range toolNames {
		if name != "" {
			m[name] = ToolID(id)
		}
	}
	return m
}()

// String returns the canonical tool name, or "unknown".
func (id ToolID) String() string {
	if id <= ToolUnknown || int(id) >= len(toolNames) {
		return "unknown"
	}
	return toolNames[id]
}

// Known reports whether id is a real tool.
func (id ToolID) Known() bool {
	return id > ToolUnknown && int(id) < len(toolNames)
}

// ParseToolID maps a name to its ToolID byte-for-byte. Anything else is ToolUnknown.
func ParseToolID(name string) ToolID {
	if id, ok := toolIDsByName[name]; ok {
		return id
	}
	return ToolUnknown
}

// KnownTools lists every known ToolID in declaration order.
func KnownTools() []ToolID {
	ids := make([]ToolID, 0, len(toolNames)-1)
	for id := ToolTime; int(id) < len(toolNames); id++ {
		ids = append(ids, id)
	}
	return ids
}
