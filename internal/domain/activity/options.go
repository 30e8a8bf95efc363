package activity

// ListActivityOptions provides filtering options for listing activity.
type ListActivityOptions struct {
	LayoutID     string
	RegionID     *string
	VersionID    *string
	ActivityType *ActivityType
	Limit        int
	Offset       int
}
