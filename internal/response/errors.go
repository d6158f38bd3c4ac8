package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidAnswer  ErrCode = "INVALID_ANSWER"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Quiz-specific ─────────────────────────────────────────────────
	ErrQuizNotFound            ErrCode = "QUIZ_NOT_FOUND"
	ErrNoQuestions             ErrCode = "NO_QUESTIONS"
	ErrQuestionNotFound        ErrCode = "QUESTION_NOT_FOUND"
	ErrMaxAttemptsReached      ErrCode = "MAX_ATTEMPTS_REACHED"
	ErrAttemptNotFound         ErrCode = "ATTEMPT_NOT_FOUND"
	ErrAttemptNotInProgress    ErrCode = "ATTEMPT_NOT_IN_PROGRESS"
	ErrAttemptAlreadyCompleted ErrCode = "ATTEMPT_ALREADY_COMPLETED"
	ErrResultNotReady          ErrCode = "RESULT_NOT_READY"

	// ─── Session-specific ──────────────────────────────────────────────
	ErrSessionNotFound      ErrCode = "SESSION_NOT_FOUND"
	ErrSessionExists        ErrCode = "SESSION_EXISTS"
	ErrSessionExpired       ErrCode = "SESSION_EXPIRED"
	ErrSessionNotActive     ErrCode = "SESSION_NOT_ACTIVE"
	ErrSessionTokenMismatch ErrCode = "SESSION_TOKEN_MISMATCH"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrInvalidAnswer:
		return "Jawaban tidak sesuai dengan jenis pertanyaan."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConflict:
		return "Sumber daya sudah ada."

	// ─── Quiz-specific ─────────────────────────────────────────────────
	case ErrQuizNotFound:
		return "Kuis tidak ditemukan."
	case ErrNoQuestions:
		return "Kuis ini tidak memiliki pertanyaan."
	case ErrQuestionNotFound:
		return "Pertanyaan tidak ditemukan dalam kuis ini."
	case ErrMaxAttemptsReached:
		return "Batas jumlah percobaan kuis telah tercapai."
	case ErrAttemptNotFound:
		return "Percobaan kuis tidak ditemukan."
	case ErrAttemptNotInProgress:
		return "Percobaan kuis tidak sedang berlangsung."
	case ErrAttemptAlreadyCompleted:
		return "Percobaan kuis sudah diselesaikan."
	case ErrResultNotReady:
		return "Hasil belum tersedia karena kuis belum diselesaikan."

	// ─── Session-specific ──────────────────────────────────────────────
	case ErrSessionNotFound:
		return "Sesi kuis tidak ditemukan."
	case ErrSessionExists:
		return "Sesi kuis sudah dimulai."
	case ErrSessionExpired:
		return "Waktu sesi kuis telah habis."
	case ErrSessionNotActive:
		return "Sesi kuis tidak aktif."
	case ErrSessionTokenMismatch:
		return "Token sesi tidak valid."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
