package notify

// Policy is the per-source display policy. Instances are immutable after
// construction; to change a source's behavior, swap in a fresh Policy.
type Policy struct {
	Enable              bool
	EnableSound         bool
	ShowBanners         bool
	ForceExpanded       bool
	ShowInLockScreen    bool
	DetailsInLockScreen bool
}

// DefaultPolicy returns the permissive policy applied to sources that have
// no app-specific configuration.
func DefaultPolicy() *Policy {
	return &Policy{
		Enable:           true,
		EnableSound:      true,
		ShowBanners:      true,
		ShowInLockScreen: true,
	}
}

// PolicyLookup resolves the policy for an application identity. The daemon
// bridge consults it when constructing a source.
type PolicyLookup interface {
	PolicyForApp(appID string) *Policy
}

// StaticPolicyLookup serves a fixed per-app policy table with a shared
// fallback. The zero value falls back to DefaultPolicy for every app.
type StaticPolicyLookup struct {
	Apps     map[string]*Policy
	Fallback *Policy
}

// PolicyForApp returns the app's policy, or the fallback when none is
// configured.
func (l *StaticPolicyLookup) PolicyForApp(appID string) *Policy {
	if p, ok := l.Apps[appID]; ok {
		return p
	}
	if l.Fallback != nil {
		return l.Fallback
	}
	return DefaultPolicy()
}
