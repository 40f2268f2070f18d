// internal/browser/script.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/guidepost/internal/dom"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// objectGroup owns every remote handle the backend creates, so Close can
// release them in one call.
const objectGroup = "guidepost"

// bindArgs wraps a function declaration so it is called with args, each
// embedded as a JSON literal, and with the receiver left intact.
func bindArgs(decl string, args ...any) (string, error) {
	if len(args) == 0 {
		return decl, nil
	}
	lits := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("failed to encode script argument %d: %w", i, err)
		}
		lits[i] = string(b)
	}
	return fmt.Sprintf("function() { return (%s).call(this, %s); }", decl, strings.Join(lits, ", ")), nil
}

// exceptionText extracts the most descriptive line of a script exception.
func exceptionText(ex *runtime.ExceptionDetails) string {
	text := ex.Text
	if ex.Exception != nil && ex.Exception.Description != "" {
		text = ex.Exception.Description
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return text
}

// scriptError maps a thrown exception to an error. Selector syntax errors
// thrown by querySelector become dom.ErrMalformedSelector.
func scriptError(ex *runtime.ExceptionDetails, selectorCall bool) error {
	text := exceptionText(ex)
	if selectorCall && strings.HasPrefix(text, "SyntaxError") {
		return fmt.Errorf("%w: %s", dom.ErrMalformedSelector, text)
	}
	return fmt.Errorf("script threw: %s", text)
}

// protocolError maps CDP failures that mean the handle's document is gone.
func protocolError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "Cannot find context with specified id") ||
		strings.Contains(msg, "Could not find object with given id") ||
		strings.Contains(msg, "Execution context was destroyed") {
		return fmt.Errorf("%w: %s", dom.ErrDetached, msg)
	}
	return err
}

// decodeValue unmarshals a by-value result. undefined and null leave out
// untouched and report false.
func decodeValue(obj *runtime.RemoteObject, out any) (bool, error) {
	if obj == nil || obj.Type == runtime.TypeUndefined || len(obj.Value) == 0 || string(obj.Value) == "null" {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal([]byte(obj.Value), out); err != nil {
		return false, fmt.Errorf("failed to decode script result: %w", err)
	}
	return true, nil
}

// isNullish reports whether a by-reference result holds no object.
func isNullish(obj *runtime.RemoteObject) bool {
	return obj == nil || obj.ObjectID == "" || obj.Type == runtime.TypeUndefined || obj.Subtype == runtime.SubtypeNull
}

// run executes fn against the tab, bounded by both the tab and the caller.
func (t *Tab) run(ctx context.Context, fn func(ctx context.Context) error) error {
	cctx, cancel := CombineContext(t.ctx, ctx)
	defer cancel()
	err := chromedp.Run(cctx, chromedp.ActionFunc(fn))
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// callFunction invokes decl with this bound to obj. With out == nil the
// result is returned by reference, otherwise it is decoded into out.
func (t *Tab) callFunction(ctx context.Context, obj runtime.RemoteObjectID, decl string, out any, selectorCall bool, args ...any) (*runtime.RemoteObject, error) {
	src, err := bindArgs(decl, args...)
	if err != nil {
		return nil, err
	}
	var res *runtime.RemoteObject
	err = t.run(ctx, func(ctx context.Context) error {
		p := runtime.CallFunctionOn(src).
			WithObjectID(obj).
			WithSilent(true).
			WithAwaitPromise(true)
		if out != nil {
			p = p.WithReturnByValue(true)
		} else {
			p = p.WithObjectGroup(objectGroup)
		}
		r, ex, err := p.Do(ctx)
		if err != nil {
			return protocolError(err)
		}
		if ex != nil {
			return scriptError(ex, selectorCall)
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out != nil {
		if _, err := decodeValue(res, out); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// evaluate runs expr in the main frame and decodes its value into out.
func (t *Tab) evaluate(ctx context.Context, expr string, out any) error {
	return t.run(ctx, func(ctx context.Context) error {
		r, ex, err := runtime.Evaluate(expr).
			WithReturnByValue(true).
			WithSilent(true).
			WithAwaitPromise(true).
			Do(ctx)
		if err != nil {
			return protocolError(err)
		}
		if ex != nil {
			return scriptError(ex, false)
		}
		_, err = decodeValue(r, out)
		return err
	})
}

// evaluateHandle runs expr and returns the resulting object handle.
func (t *Tab) evaluateHandle(ctx context.Context, expr string) (runtime.RemoteObjectID, error) {
	var id runtime.RemoteObjectID
	err := t.run(ctx, func(ctx context.Context) error {
		r, ex, err := runtime.Evaluate(expr).
			WithObjectGroup(objectGroup).
			WithSilent(true).
			Do(ctx)
		if err != nil {
			return protocolError(err)
		}
		if ex != nil {
			return scriptError(ex, false)
		}
		if isNullish(r) {
			return errors.New("expression did not yield an object")
		}
		id = r.ObjectID
		return nil
	})
	return id, err
}
