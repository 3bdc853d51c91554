package gate

import (
	"fmt"
)

// FailureKind класс отказа гейта
type FailureKind string

const (
	FailureInstall           FailureKind = "install"
	FailureStaticCheck       FailureKind = "static-check"
	FailureTest              FailureKind = "test"
	FailureCoverageShortfall FailureKind = "coverage-shortfall"
	FailureBuild             FailureKind = "build"
	FailureArtifact          FailureKind = "artifact"
)

// StageError отказ стадии. ExitCode код завершения инструмента, 1 если неизвестен.
type StageError struct {
	Gate     string
	Stage    string
	Kind     FailureKind
	ExitCode int
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s gate failed at %s (%s, exit code %d): %v", e.Gate, e.Stage, e.Kind, e.ExitCode, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// failureKind классифицирует отказ по виду стадии
func failureKind(k Kind) FailureKind {
	switch k {
	case KindInstall:
		return FailureInstall
	case KindAudit, KindLint, KindTypecheck, KindFormat:
		return FailureStaticCheck
	case KindTest:
		return FailureTest
	case KindBuild:
		return FailureBuild
	default:
		return FailureArtifact
	}
}
