package main

// 引入报告模板与交互插件，触发 init() 完成注册
import (
	_ "github.com/sshcollectorpro/switchreport/addone/collect/platforms/cisco_nxos"
	_ "github.com/sshcollectorpro/switchreport/addone/interact/platforms/cisco_nxos"
)
