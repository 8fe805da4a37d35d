package raft

import "fmt"

type QueryAction int

const (
	UpsertStatistics QueryAction = iota
	DeleteStatistics
	DeleteStatisticsObject
)

var queryActionNames = map[QueryAction]string{
	UpsertStatistics:       "upsert",
	DeleteStatistics:       "delete",
	DeleteStatisticsObject: "delete_stxoid",
}

func (a QueryAction) String() string {
	if name, ok := queryActionNames[a]; ok {
		return name
	}

	return fmt.Sprintf("QueryAction(%d)", int(a))
}

func queryActionFromString(s string) (QueryAction, error) {
	for action, name := range queryActionNames {
		if name == s {
			return action, nil
		}
	}

	return 0, fmt.Errorf("unknown query action %q", s)
}
