package cli

import (
	"errors"

	"github.com/remp2020/crm-segment-module/internal/catalog"
	"github.com/remp2020/crm-segment-module/internal/criteria"
	"github.com/remp2020/crm-segment-module/internal/model"
	"github.com/remp2020/crm-segment-module/internal/params"
	"github.com/remp2020/crm-segment-module/internal/query"
	"github.com/remp2020/crm-segment-module/internal/segment"
	"github.com/remp2020/crm-segment-module/internal/service"
	"github.com/remp2020/crm-segment-module/internal/store"
	"github.com/remp2020/crm-segment-module/internal/validator"
)

// Error codes reported in CLIError.Code.
const (
	ErrCodeGeneric         = "E001"
	ErrCodeConfig          = "E002"
	ErrCodeDatabase        = "E003"
	ErrCodeCatalog         = "E004"
	ErrCodeNotFound        = "E005"
	ErrCodeInvalidRequest  = "E006"
	ErrCodeInvalidCriteria = "E007"
	ErrCodeForbiddenQuery  = "E008"
	ErrCodeNesting         = "E009"
	ErrCodeConflict        = "E010"
	ErrCodeLocked          = "E011"
	ErrCodeExecution       = "E012"
)

// setupError marks a failure while wiring the application.
type setupError struct {
	code string
	err  error
}

func (e *setupError) Error() string { return e.err.Error() }

func (e *setupError) Unwrap() error { return e.err }

// errorCode maps err to a CLI error code.
func errorCode(err error) string {
	var se *setupError
	if errors.As(err, &se) {
		return se.code
	}

	var (
		loadErr    *catalog.LoadError
		missingErr *params.MissingParamError
	)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, store.ErrLocked):
		return ErrCodeLocked
	case service.IsConflict(err), service.IsCodeInUse(err), errors.Is(err, store.ErrDuplicateCode):
		return ErrCodeConflict
	case service.IsRequestError(err):
		return ErrCodeInvalidRequest
	case validator.IsValidationError(err):
		return ErrCodeForbiddenQuery
	case query.IsNestingError(err):
		return ErrCodeNesting
	case errors.As(err, &loadErr):
		return ErrCodeCatalog
	case criteria.IsEmptyCriteria(err), criteria.IsInvalidCriteria(err), errors.As(err, &missingErr),
		params.IsInvalidData(err), params.IsTypeMismatch(err):
		return ErrCodeInvalidCriteria
	case segment.IsSegmentError(err):
		return ErrCodeExecution
	}
	return ErrCodeGeneric
}

// errorDetails returns structured context for the error types that carry it.
func errorDetails(err error) interface{} {
	var (
		ne  *query.NestingError
		ve  *validator.ValidationError
		se  *segment.SegmentError
		ce  *service.CodeInUseError
		le  *catalog.LoadError
		ice *criteria.InvalidCriteriaError
	)
	switch {
	case errors.As(err, &ne):
		return map[string]interface{}{"reason": ne.Code, "segments": ne.Segments}
	case errors.As(err, &ve):
		if ve.Operation != "" {
			return map[string]string{"operation": ve.Operation}
		}
		return map[string]string{"table": ve.Table}
	case errors.As(err, &se):
		return map[string]string{"op": se.Op, "query": se.Query}
	case errors.As(err, &ce):
		return map[string]string{"code": ce.Code, "referenced_by": ce.ReferencedBy}
	case errors.As(err, &le):
		details := map[string]interface{}{"field": le.Field}
		if le.Pos.IsValid() {
			details["file"] = le.Pos.Filename()
			details["line"] = le.Pos.Line()
			details["column"] = le.Pos.Column()
		}
		return details
	case errors.As(err, &ice):
		return map[string]string{"key": ice.Key}
	}
	return nil
}

// fail reports err through f and returns the matching ExitError.
func fail(f *OutputFormatter, err error) error {
	code := errorCode(err)
	_ = f.Error(code, err.Error(), errorDetails(err))
	return WrapExitError(ExitCommandError, code, err)
}

// reject reports a negative answer: a rejected query or a failed check.
func reject(f *OutputFormatter, err error) error {
	code := errorCode(err)
	_ = f.Error(code, err.Error(), errorDetails(err))
	return WrapExitError(ExitFailure, code, err)
}

// usage reports invalid command input.
func usage(f *OutputFormatter, message string) error {
	_ = f.Error(ErrCodeInvalidRequest, message, nil)
	return NewExitError(ExitCommandError, message)
}
