package config

type WorkerKeyStruct struct {
	// SessionDeadlines is a sorted set of attempt IDs scored by session expiry (unix seconds).
	SessionDeadlines string
	// ExpirySweepLock guards against two sweepers expiring the same batch.
	ExpirySweepLock string
}

var WorkerKey = &WorkerKeyStruct{
	SessionDeadlines: "quiz:sessions:deadlines",
	ExpirySweepLock:  "quiz:sessions:sweep_lock",
}
