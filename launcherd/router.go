package launcherd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/itchio/httpkit/neterr"
	"github.com/itchio/wharf/state"
	"github.com/itchio/wharf/werrors"
	"github.com/oaiba/oblauncher/catalog"
	"github.com/oaiba/oblauncher/comm"
	"github.com/oaiba/oblauncher/launcher"
	"github.com/oaiba/oblauncher/store"
	"github.com/pkg/errors"
	"github.com/sourcegraph/jsonrpc2"
	"golang.org/x/sync/singleflight"
)

type RequestHandler func(rc *RequestContext) (interface{}, error)
type NotificationHandler func(rc *RequestContext)

// Services are shared by all requests handled by a router
type Services struct {
	Store   store.Store
	Catalog catalog.Source

	HTTPClient *http.Client
	UserAgent  string
	// Where archives are downloaded before extraction
	TempDir string

	Opener launcher.Opener
}

type Router struct {
	Handlers             map[string]RequestHandler
	NotificationHandlers map[string]NotificationHandler
	CancelFuncs          *CancelFuncs
	Services             *Services

	Group *singleflight.Group

	Version string

	globalConsumer *state.Consumer
}

var _ jsonrpc2.Handler = (*Router)(nil)

func NewRouter(services *Services) *Router {
	return &Router{
		Handlers:             make(map[string]RequestHandler),
		NotificationHandlers: make(map[string]NotificationHandler),
		CancelFuncs: &CancelFuncs{
			Funcs: make(map[string]context.CancelFunc),
		},
		Services: services,

		Group: &singleflight.Group{},

		globalConsumer: &state.Consumer{
			OnMessage: func(lvl string, msg string) {
				comm.Logl(lvl, fmt.Sprintf("[router] %s", msg))
			},
		},
	}
}

func (r *Router) Register(method string, rh RequestHandler) {
	if _, ok := r.Handlers[method]; ok {
		panic(fmt.Sprintf("Can't register handler twice for %s", method))
	}
	r.Handlers[method] = rh
}

func (r *Router) RegisterNotification(method string, nh NotificationHandler) {
	if _, ok := r.NotificationHandlers[method]; ok {
		panic(fmt.Sprintf("Can't register handler twice for %s", method))
	}
	r.NotificationHandlers[method] = nh
}

func (r *Router) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	r.Dispatch(ctx, conn, req)
}

func (r *Router) Dispatch(ctx context.Context, origConn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	method := req.Method
	var res interface{}

	conn := &JsonRPC2Conn{origConn}
	consumer, cErr := NewStateConsumer(&NewStateConsumerParams{
		Ctx:  ctx,
		Conn: conn,
	})
	if cErr != nil {
		return
	}

	rc := &RequestContext{
		Ctx:         ctx,
		Consumer:    consumer,
		Params:      req.Params,
		Conn:        conn,
		CancelFuncs: r.CancelFuncs,
		Services:    r.Services,
		Group:       r.Group,
		Version:     r.Version,

		method: method,
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				if rErr, ok := r.(error); ok {
					err = errors.WithStack(rErr)
				} else {
					err = errors.Errorf("panic: %v", r)
				}
			}
		}()

		if req.Notif {
			if nh, ok := r.NotificationHandlers[req.Method]; ok {
				nh(rc)
			} else {
				r.globalConsumer.Debugf("Ignoring unknown notification %s", req.Method)
			}
		} else {
			if h, ok := r.Handlers[method]; ok {
				res, err = h(rc)
			} else {
				err = &RpcError{
					Code:    jsonrpc2.CodeMethodNotFound,
					Message: fmt.Sprintf("Method '%s' not found", req.Method),
				}
			}
		}
		return
	}()

	if req.Notif {
		if err != nil {
			consumer.Warnf("Handling %s: %+v", req.Method, err)
		}
		return
	}

	defer rc.replied()

	if err == nil {
		err = origConn.Reply(ctx, req.ID, res)
		if err != nil {
			r.globalConsumer.Warnf("Error while replying: %s", err.Error())
		}
		return
	}

	var code int64
	var message string
	var data map[string]interface{}

	if ee, ok := AsLauncherdError(err); ok {
		code = ee.RpcErrorCode()
		message = ee.RpcErrorMessage()
		data = ee.RpcErrorData()
	} else {
		if neterr.IsNetworkError(err) {
			code = int64(CodeNetworkDisconnected)
			message = CodeNetworkDisconnected.Error()
		} else if errors.Cause(err) == werrors.ErrCancelled {
			code = int64(CodeOperationCancelled)
			message = CodeOperationCancelled.Error()
		} else {
			code = jsonrpc2.CodeInternalError
			message = err.Error()
		}
	}

	var rawData *json.RawMessage
	if data == nil {
		data = make(map[string]interface{})
	}
	data["stack"] = fmt.Sprintf("%+v", err)
	if r.Version != "" {
		data["launcherVersion"] = r.Version
	}

	marshalledData, marshalErr := json.Marshal(data)
	if marshalErr == nil {
		rawMessage := json.RawMessage(marshalledData)
		rawData = &rawMessage
	}

	replyErr := origConn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
		Code:    code,
		Message: message,
		Data:    rawData,
	})
	if replyErr != nil {
		r.globalConsumer.Warnf("Error while replying with error: %s", replyErr.Error())
	}
}

type RequestContext struct {
	Ctx         context.Context
	Consumer    *state.Consumer
	Params      *json.RawMessage
	Conn        Conn
	CancelFuncs *CancelFuncs
	Services    *Services

	Group   *singleflight.Group
	Version string

	method string

	afterReplyLock sync.Mutex
	afterReply     []func()
	hasReplied     bool
}

func (rc *RequestContext) Call(method string, params interface{}, res interface{}) error {
	return rc.Conn.Call(rc.Ctx, method, params, res)
}

func (rc *RequestContext) Notify(method string, params interface{}) error {
	return rc.Conn.Notify(rc.Ctx, method, params)
}

// AfterReply runs f once the reply to the current request was sent,
// so that notifications it sends can't overtake the reply.
func (rc *RequestContext) AfterReply(f func()) {
	rc.afterReplyLock.Lock()
	defer rc.afterReplyLock.Unlock()

	if rc.hasReplied {
		go f()
		return
	}
	rc.afterReply = append(rc.afterReply, f)
}

func (rc *RequestContext) replied() {
	rc.afterReplyLock.Lock()
	defer rc.afterReplyLock.Unlock()

	rc.hasReplied = true
	for _, f := range rc.afterReply {
		go f()
	}
	rc.afterReply = nil
}

// CancelFuncs tracks cancellable background operations by id
type CancelFuncs struct {
	Funcs map[string]context.CancelFunc
	lock  sync.Mutex
}

func (cf *CancelFuncs) Add(id string, f context.CancelFunc) {
	cf.lock.Lock()
	defer cf.lock.Unlock()
	cf.Funcs[id] = f
}

func (cf *CancelFuncs) Remove(id string) {
	cf.lock.Lock()
	defer cf.lock.Unlock()
	delete(cf.Funcs, id)
}

func (cf *CancelFuncs) Call(id string) bool {
	cf.lock.Lock()
	f, ok := cf.Funcs[id]
	if ok {
		delete(cf.Funcs, id)
	}
	cf.lock.Unlock()

	if ok {
		f()
	}
	return ok
}
