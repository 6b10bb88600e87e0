//go:build linux
// +build linux

package shphttpd

import (
	"runtime"
)

func (svr *server) runReactor(lockOSThread bool) {
	if lockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	defer svr.signalShutdown()

	// 单 Reactor：监听 fd 与所有连接 fd 注册在同一个 epoll 上
	err := svr.el.poller.Polling(svr.el.handleEvent)
	svr.logger.Infof("Reactor is exiting due to error: %v", err)
}
