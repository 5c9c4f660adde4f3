package groundtruth

// Key identifies a ground truth row. ImprID is zero for user-level rows.
type Key struct {
	ImprID int64
	UserID string
}

// Index maps a join key to the set of relevant article IDs.
type Index map[Key]map[string]struct{}

// IndexUsers builds a user-level index.
func IndexUsers(rows []UserGroundTruth) Index {
	idx := make(Index, len(rows))
	for _, r := range rows {
		idx[Key{UserID: r.UserID}] = toSet(r.Hist)
	}
	return idx
}

// IndexImpressions builds an impression-level index.
func IndexImpressions(rows []ImpressionGroundTruth) Index {
	idx := make(Index, len(rows))
	for _, r := range rows {
		idx[Key{ImprID: r.ImprID, UserID: r.UserID}] = toSet(r.GT)
	}
	return idx
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
