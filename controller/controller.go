// Copyright 2025 The framed Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/framed/framed/confengine"
	"github.com/framed/framed/internal/rescue"
	"github.com/framed/framed/logger"
	"github.com/framed/framed/server"
	"github.com/framed/framed/session"
	"github.com/framed/framed/transport"
)

// Config controller 级配置
type Config struct {
	// SessionExpired 未活跃会话的过期时间
	SessionExpired time.Duration `config:"sessionExpired"`

	// Session 会话配置 对所有 listener 生效
	Session session.Config `config:"session"`
}

func (c Config) GetSessionExpired() time.Duration {
	if c.SessionExpired < time.Minute {
		return 5 * time.Minute
	}
	return c.SessionExpired
}

// Controller 负责将配置装配为运行实体
//
// 即 listeners 会话表 dispatch 以及管理端服务 并管理其生命周期
type Controller struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config

	svr       *server.Server
	listeners []transport.Listener
	registry  *session.Registry
	dispatch  session.DispatchFunc
}

func setupLogger(conf *confengine.Config) error {
	var opts logger.Options
	if err := conf.UnpackChild("logger", &opts); err != nil {
		return err
	}

	if opts.Filename == "" {
		opts.Stdout = true
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 10
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 7
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 100
	}

	logger.SetOptions(opts)
	return nil
}

func New(conf *confengine.Config, dispatch session.DispatchFunc) (*Controller, error) {
	if conf.Has("logger") {
		if err := setupLogger(conf); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if conf.Has("controller") {
		if err := conf.UnpackChild("controller", &cfg); err != nil {
			return nil, err
		}
	}

	var root struct {
		Listeners []transport.Config `config:"listeners"`
	}
	if err := conf.Unpack(&root); err != nil {
		return nil, err
	}
	listenerConfigs := root.Listeners
	if len(listenerConfigs) == 0 {
		return nil, errors.New("controller: no listeners configured")
	}

	listeners := make([]transport.Listener, 0, len(listenerConfigs))
	for _, lc := range listenerConfigs {
		ln, err := transport.NewListener(lc)
		if err != nil {
			for _, exist := range listeners {
				exist.Close()
			}
			return nil, err
		}
		listeners = append(listeners, ln)
		logger.Infof("listener (%s/%s) bound on %s", lc.Name, lc.Type, ln.Addr())
	}

	svr, err := server.New(conf)
	if err != nil {
		for _, exist := range listeners {
			exist.Close()
		}
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctr := &Controller{
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		svr:       svr,
		listeners: listeners,
		registry:  session.NewRegistry(),
		dispatch:  dispatch,
	}

	if svr != nil {
		svr.RegisterGetRoute("/sessions", ctr.sessionsRoute)
	}
	return ctr, nil
}

// Registry 返回活跃会话表
func (c *Controller) Registry() *session.Registry {
	return c.registry
}

// Addrs 返回各 listener 的实际监听地址
func (c *Controller) Addrs() []string {
	addrs := make([]string, 0, len(c.listeners))
	for _, ln := range c.listeners {
		addrs = append(addrs, ln.Addr())
	}
	return addrs
}

func (c *Controller) Start() error {
	for _, ln := range c.listeners {
		go c.acceptLoop(ln)
	}
	go c.sweepExpired()

	if c.svr != nil {
		go func() {
			defer rescue.HandleCrash("controller/adminServer")
			if err := c.svr.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("admin server exits: %v", err)
			}
		}()
	}
	return nil
}

func (c *Controller) Stop() {
	c.cancel()
	for _, ln := range c.listeners {
		ln.Close()
	}
	c.registry.Close()
	if c.svr != nil {
		c.svr.Close()
	}
}

// Reload 重新加载配置 仅日志配置支持热更
func (c *Controller) Reload(conf *confengine.Config) error {
	if !conf.Has("logger") {
		return nil
	}
	return setupLogger(conf)
}

func (c *Controller) acceptLoop(ln transport.Listener) {
	defer rescue.HandleCrash("controller/acceptLoop")

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-c.ctx.Done():
				return
			default:
			}
			logger.Warnf("accept failed on %s: %v", ln.Addr(), err)
			return
		}

		s := session.New(conn, session.RoleServer, c.cfg.Session, c.dispatch)
		c.registry.Add(s)
		logger.Infof("session %s accepted, remote=%s", s.ID(), s.RemoteAddr())
	}
}

// sweepExpired 周期性关闭长时间未活跃的会话
func (c *Controller) sweepExpired() {
	defer rescue.HandleCrash("controller/sweepExpired")

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return

		case <-ticker.C:
			expired := c.cfg.GetSessionExpired()
			c.registry.Range(func(s *session.Session) bool {
				if time.Since(s.ActiveAt()) > expired {
					logger.Infof("session %s expired, lastActive=%s", s.ID(), s.ActiveAt())
					s.Close()
				}
				return true
			})
		}
	}
}

func (c *Controller) sessionsRoute(w http.ResponseWriter, _ *http.Request) {
	server.WriteJSON(w, map[string]any{
		"total":    c.registry.Num(),
		"sessions": c.registry.Snapshot(),
	})
}
