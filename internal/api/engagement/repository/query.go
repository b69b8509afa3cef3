package engagementRepository

const (
	queryCreateSession = `
		INSERT INTO engagement_sessions (
			session_id, mode, status, turn_count, threat_level,
			tactics, detected_language, voice_clone_id, started_at, ended_at
		) VALUES (
			:session_id, :mode, :status, :turn_count, :threat_level,
			:tactics, :detected_language, :voice_clone_id, :started_at, :ended_at
		)
	`

	queryGetSessionByID = `
		SELECT
			session_id, mode, status, turn_count, threat_level,
			tactics, detected_language, voice_clone_id, started_at, ended_at
		FROM engagement_sessions
		WHERE session_id = :session_id
	`

	queryUpdateSessionState = `
		UPDATE engagement_sessions
		SET
			mode = :mode,
			status = :status,
			turn_count = :turn_count,
			threat_level = :threat_level,
			tactics = :tactics,
			detected_language = :detected_language
		WHERE session_id = :session_id
	`

	queryMarkSessionEnded = `
		UPDATE engagement_sessions
		SET
			status = :status,
			turn_count = :turn_count,
			threat_level = :threat_level,
			tactics = :tactics,
			ended_at = :ended_at
		WHERE session_id = :session_id AND status != 'ended'
	`

	queryAppendUtterance = `
		INSERT INTO utterances (
			session_id, speaker, text, language, confidence, source, created_at
		) VALUES (
			:session_id, :speaker, :text, :language, :confidence, :source, :created_at
		)
	`

	queryGetUtterances = `
		SELECT speaker, text, language, confidence, source, created_at
		FROM utterances
		WHERE session_id = :session_id
		ORDER BY id ASC
	`

	queryAppendEntity = `
		INSERT INTO intelligence_entities (
			session_id, kind, value, first_seen_at
		) VALUES (
			:session_id, :kind, :value, :first_seen_at
		)
		ON CONFLICT (session_id, kind, value) DO NOTHING
	`

	queryGetEntities = `
		SELECT kind, value, first_seen_at
		FROM intelligence_entities
		WHERE session_id = :session_id
		ORDER BY first_seen_at ASC
	`

	queryAppendURLScan = `
		INSERT INTO url_scans (
			session_id, url, is_safe, risk_score, findings, created_at
		) VALUES (
			:session_id, :url, :is_safe, :risk_score, :findings, :created_at
		)
	`
)
