package testtool

import (
	"net/http"
	"net/http/pprof"

	"task_chat_service/pkg/config"
	"task_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// PprofAddr only bound on loopback
const PprofAddr = "127.0.0.1:6060"

// StartPprof 非 production 時開 pprof，用獨立 mux 不污染 DefaultServeMux
func StartPprof() {
	if config.IsProduction() {
		logger.Log.Info("production, pprof disabled")
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	go func() {
		logger.Log.Info("pprof listening", zap.String("addr", PprofAddr))
		if err := http.ListenAndServe(PprofAddr, mux); err != nil {
			logger.Log.Warn("pprof server stopped", zap.Error(err))
		}
	}()
}
