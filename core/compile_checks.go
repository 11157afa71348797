package core

var (
	_ UnitOfWork      = NoopUnitOfWork{}
	_ RawConfigLoader = StaticConfigLoader{}
	_ RawConfigLoader = EnvConfigLoader{}
	_ ConfigProvider  = (*CfgxConfigProvider)(nil)
	_ OptionsResolver = GoOptionsResolver{}
)
