package settings

import (
	"github.com/oaiba/oblauncher/launcherd"
	"github.com/oaiba/oblauncher/launcherd/messages"
	"github.com/pkg/errors"
)

func Register(router *launcherd.Router) {
	messages.StoreGet.Register(router, StoreGet)
	messages.StoreSet.Register(router, StoreSet)
}

func StoreGet(rc *launcherd.RequestContext, params launcherd.StoreGetParams) (*launcherd.StoreGetResult, error) {
	value, ok, err := rc.Services.Store.Get(params.Key)
	if err != nil {
		return nil, errors.WithMessage(err, "reading setting")
	}

	res := &launcherd.StoreGetResult{}
	if ok {
		res.Value = &value
	}
	return res, nil
}

func StoreSet(rc *launcherd.RequestContext, params launcherd.StoreSetNotification) error {
	err := rc.Services.Store.Set(params.Key, params.Value)
	if err != nil {
		return errors.WithMessage(err, "writing setting")
	}
	rc.Consumer.Debugf("Setting %s updated", params.Key)
	return nil
}
