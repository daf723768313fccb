package service

import (
	"course_engine_backend/internal/config"
	"sync/atomic"
)

// EngineSettings 可热更新的引擎参数，配置文件变更后由 configwatcher 回调写入
type EngineSettings struct {
	v atomic.Pointer[config.EngineConfig]
}

func NewEngineSettings(cfg config.EngineConfig) *EngineSettings {
	s := &EngineSettings{}
	s.Update(cfg)
	return s
}

func (s *EngineSettings) Get() config.EngineConfig {
	if s == nil {
		return config.EngineConfig{}.Normalize()
	}
	if cfg := s.v.Load(); cfg != nil {
		return *cfg
	}
	return config.EngineConfig{}.Normalize()
}

func (s *EngineSettings) Update(cfg config.EngineConfig) {
	cfg = cfg.Normalize()
	s.v.Store(&cfg)
}
