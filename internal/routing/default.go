package routing

// Default returns the layout of the recruitment form this engine was first
// deployed against: ten branch destinations, each opted into through its
// own switch question.
func Default() Layout {
	table, err := NewTable(
		Span{Name: CommonName, Start: 6, End: 25},
		[]Span{
			{Name: "AI", Sheet: "AI", Start: 32, End: 39, AnalyticsColumn: 4},
			{Name: "HPC", Sheet: "HPC", Start: 40, End: 47, AnalyticsColumn: 5},
			{Name: "Marketing, Design and Publications", Sheet: "Marketing", Start: 48, End: 55, AnalyticsColumn: 6},
			{Name: "Industry Team", Sheet: "Industry", Start: 56, End: 58, AnalyticsColumn: 7},
			{Name: "Events Team", Sheet: "Events", Start: 63, End: 68, AnalyticsColumn: 8},
			{Name: "People and Culture Officer", Sheet: "P&C", Start: 69, End: 73, AnalyticsColumn: 9},
			{Name: "Law & Ethics Committee", Sheet: "L&E", Start: 26, End: 31, AnalyticsColumn: 10},
			{Name: "Outreach Team", Sheet: "Outreach", Start: 59, End: 62, AnalyticsColumn: 11},
			{Name: "Training Team", Sheet: "Training", Start: 74, End: 79, AnalyticsColumn: 12},
		},
		[]int{25, 31, 39, 47, 55, 58, 62, 68, 73, 79},
	)
	if err != nil {
		// The literal above is checked by TestDefaultLayout.
		panic(err)
	}
	return Layout{
		Table: table,
		Fields: Fields{
			Identity: []int{1, 4},
			Name:     []int{2, 3},
			Contact:  1,
		},
		Sentinel: DefaultSentinel,
	}
}
