package dto

// ScoreDistributionResponse maps score buckets to submission counts.
type ScoreDistributionResponse map[string]int64

// SubmissionsPerDayResponse is one point of the submission time series.
type SubmissionsPerDayResponse struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// SetAnalyticsResponse aggregates reporting statistics for one problem set.
// Everything here is recomputed from submission history; enrollment counters
// are not part of the calculation.
type SetAnalyticsResponse struct {
	ProblemSetID    uint                        `json:"problem_set_id"`
	SubmissionCount int64                       `json:"submission_count"`
	EnrollmentCount int64                       `json:"enrollment_count"`
	MeanScore       float64                     `json:"mean_score"`
	MedianScore     float64                     `json:"median_score"`
	StdDevScore     float64                     `json:"std_dev_score"`
	PassRate        float64                     `json:"pass_rate"`
	Distribution    ScoreDistributionResponse   `json:"distribution"`
	TimeSeries      []SubmissionsPerDayResponse `json:"time_series"`
	CacheHit        bool                        `json:"cache_hit,omitempty"`
}
