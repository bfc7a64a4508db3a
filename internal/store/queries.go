package store

// Run ledger queries
const (
	queryInsertRun = `
		INSERT INTO runs (id, tags, started_at, finished_at, changed, unchanged, skipped, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryInsertTaskResult = `
		INSERT INTO task_results (run_id, seq, task, status, duration_us, message)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetRun = `
		SELECT id, tags, started_at, finished_at, failed, error
		FROM runs WHERE id = ?`

	queryLatestRun = `
		SELECT id, tags, started_at, finished_at, failed, error
		FROM runs ORDER BY started_at DESC, id DESC LIMIT 1`

	queryGetTaskResults = `
		SELECT task, status, duration_us, message
		FROM task_results WHERE run_id = ? ORDER BY seq`
)
