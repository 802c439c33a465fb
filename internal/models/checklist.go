package models

// ChecklistEntry is one configured grooming criterion. Loaded at process
// start and immutable for the run.
type ChecklistEntry struct {
	Key         string  `json:"key" mapstructure:"key"`
	Description string  `json:"description" mapstructure:"description"`
	Weight      float64 `json:"weight" mapstructure:"weight"`
}

// ChecklistResult is the model's boolean answer for one entry. A scoring
// pass produces exactly one result per configured entry, in
// configuration order.
type ChecklistResult struct {
	Entry ChecklistEntry `json:"entry"`
	Value bool           `json:"value"`
}
