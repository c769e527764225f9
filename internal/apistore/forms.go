package apistore

// SetFormError records err for formID. A nil err clears it.
func (s *Store) SetFormError(formID string, err error) {
	s.formMu.Lock()
	defer s.formMu.Unlock()
	s.lockedForm(formID).FormError = err
}

// ClearFormError removes any error recorded for formID.
func (s *Store) ClearFormError(formID string) {
	s.SetFormError(formID, nil)
}

// SetFormSubmitting records whether formID is being submitted.
func (s *Store) SetFormSubmitting(formID string, submitting bool) {
	s.formMu.Lock()
	defer s.formMu.Unlock()
	s.lockedForm(formID).IsSubmitting = submitting
}

// FormState returns the state recorded for formID. Unknown forms report the
// zero state.
func (s *Store) FormState(formID string) FormState {
	s.formMu.RLock()
	defer s.formMu.RUnlock()
	if st, ok := s.forms[formID]; ok {
		return *st
	}
	return FormState{}
}

func (s *Store) lockedForm(formID string) *FormState {
	st, ok := s.forms[formID]
	if !ok {
		st = &FormState{}
		s.forms[formID] = st
	}
	return st
}
