package domain

// RelevanceJudgment is the classifier verdict for one subject. Never persisted.
type RelevanceJudgment struct {
	SubjectID  string `json:"subject_id"`
	IsRelevant bool   `json:"is_relevant"`
}

// FilteredPair is a relevant post with the comments judged relevant under it,
// in original fetch order.
type FilteredPair struct {
	Post             Post      `json:"post"`
	RelevantComments []Comment `json:"relevant_comments"`
}

// FilterStats counts what the two-stage filter did.
type FilterStats struct {
	PostsIn              int `json:"posts_in"`
	PostsRelevant        int `json:"posts_relevant"`
	PostFailures         int `json:"post_failures"`
	CommentsIn           int `json:"comments_in"`
	CommentsClassified   int `json:"comments_classified"`
	CommentsRelevant     int `json:"comments_relevant"`
	CommentBatches       int `json:"comment_batches"`
	CommentBatchFailures int `json:"comment_batch_failures"`
}

// Failures is the number of classifier calls lost to transport errors.
func (s FilterStats) Failures() int {
	return s.PostFailures + s.CommentBatchFailures
}

// FilterResult is the pipeline output.
type FilterResult struct {
	Pairs []FilteredPair `json:"pairs"`
	Stats FilterStats    `json:"stats"`
}
