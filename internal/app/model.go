package app

// SwitchModel loads model in the background and swaps it in once the
// controller is idle. On failure the current model stays active.
func (s *State) SwitchModel(model string) {
	s.mu.Lock()
	current := s.model
	switch {
	case s.loadCtx.Err() != nil, model == current:
		s.mu.Unlock()
		return
	case s.pending != "":
		pending := s.pending
		s.mu.Unlock()
		s.log.Warn("model switch already in progress", "pending", pending, "requested", model)
		s.setTrayModel(current)
		return
	}
	s.pending = model
	s.loads.Add(1)
	s.mu.Unlock()

	s.log.Info("loading model", "model", model, "current", current)
	go func() {
		defer s.loads.Done()
		engine, err := s.deps.LoadEngine(s.loadCtx, model)
		if err != nil {
			s.mu.Lock()
			s.pending = ""
			s.mu.Unlock()
			s.log.Error("model switch failed, keeping current model", "model", model, "current", current, "error", err)
			s.setTrayModel(current)
			if s.cfg.Indicator.Notification {
				_ = s.deps.Notify("Could not load model " + model)
			}
			return
		}
		s.controller.WhenIdle(func() {
			s.dispatcher.SetEngine(engine)
			s.mu.Lock()
			s.model = model
			s.pending = ""
			s.mu.Unlock()
			s.metrics.ModelSwitch()
			s.setTrayModel(model)
			s.log.Info("model switched", "model", model)
		})
	}()
}

func (s *State) setTrayModel(model string) {
	if s.tray != nil {
		s.tray.SetModel(model)
	}
}
