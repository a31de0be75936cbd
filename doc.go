// Package glprog generates, compiles and caches the GPU programs that render
// materials.
//
// A material and its lights are reduced to a [featkey.Key] holding only what changes
// the generated GLSL. The key names the program in the [glcache.Cache]; on a miss
// the program is generated stage by stage with a [glbuild.ProgramGenerator] and
// compiled by the cache's backend, usually the OpenGL backend of package glbackend.
//
//	sys, err := glprog.NewSystem(backend, glprog.Config{CacheFile: "programs.yaml"})
//	if err != nil {
//		return err
//	}
//	mat := glprog.DefaultMaterial()
//	prog, err := sys.GetShader(&mat, lights, nil)
//
// Uniform values are not part of the key. Use [Uniforms] to obtain them.
package glprog
