package logger

// LogAction logs the outcome of a single device action against an account
func LogAction(username, kind string, success bool, err error) {
	fields := map[string]interface{}{
		"username": username,
		"kind":     kind,
		"success":  success,
	}

	l := GetLogger().WithFields(fields)

	if err != nil {
		l.WithError(err).Error("Action failed")
	} else if success {
		l.Info("Action completed")
	} else {
		l.Warn("Action skipped")
	}
}

// LogJobSummary logs the aggregate result of one job run
func LogJobSummary(job string, attempted, succeeded, failed int) {
	GetLogger().InfoWithFields("Job finished", map[string]interface{}{
		"job":       job,
		"attempted": attempted,
		"succeeded": succeeded,
		"failed":    failed,
	})
}

// LogDailyCap logs that a job skipped work because a daily cap was reached
func LogDailyCap(job string, cap int) {
	GetLogger().WarnWithFields("Daily cap reached, skipping job", map[string]interface{}{
		"job": job,
		"cap": cap,
	})
}
